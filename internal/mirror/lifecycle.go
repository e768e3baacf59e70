package mirror

import "ibmirror/internal/models"

// transitions lists the order statuses reachable from each status.
// Terminal statuses have no outgoing edges: a done trade never goes back
// to active, whatever a late or re-ordered message claims.
var transitions = map[models.Status][]models.Status{
	models.StatusPendingSubmit: {
		models.StatusPendingCancel,
		models.StatusPreSubmitted,
		models.StatusSubmitted,
		models.StatusCancelled,
		models.StatusApiCancelled,
		models.StatusFilled,
		models.StatusInactive,
	},
	models.StatusPendingCancel: {
		models.StatusSubmitted, // cancel rejected, order lives on
		models.StatusCancelled,
		models.StatusApiCancelled,
		models.StatusFilled,
		models.StatusInactive,
	},
	models.StatusPreSubmitted: {
		models.StatusPendingSubmit, // local modify re-enters
		models.StatusPendingCancel,
		models.StatusSubmitted,
		models.StatusCancelled,
		models.StatusApiCancelled,
		models.StatusFilled,
		models.StatusInactive,
	},
	models.StatusSubmitted: {
		models.StatusPendingSubmit, // local modify re-enters
		models.StatusPendingCancel,
		models.StatusPreSubmitted,
		models.StatusCancelled,
		models.StatusApiCancelled,
		models.StatusFilled,
		models.StatusInactive,
	},
	// a validation annotation is transient; the next server status wins
	models.StatusValidationError: {
		models.StatusPendingSubmit,
		models.StatusPendingCancel,
		models.StatusPreSubmitted,
		models.StatusSubmitted,
		models.StatusCancelled,
		models.StatusApiCancelled,
		models.StatusFilled,
		models.StatusInactive,
	},
}

// CanTransition reports whether an order may move from one status to
// another. A repeated status is always legal; the empty status admits
// anything, covering trades first seen mid-flight during a resync.
func CanTransition(from, to models.Status) bool {
	if from == to || from == "" {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
