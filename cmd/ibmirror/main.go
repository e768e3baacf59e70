package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"ibmirror/internal/config"
	"ibmirror/internal/events"
	"ibmirror/internal/logger"
	"ibmirror/internal/protocol"
	"ibmirror/internal/session"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Runtime.Log.Level,
		Format:     cfg.Runtime.Log.Format,
		Output:     cfg.Runtime.Log.File,
		MaxSize:    cfg.Runtime.Log.MaxSize,
		MaxBackups: cfg.Runtime.Log.MaxBackups,
		MaxAge:     cfg.Runtime.Log.MaxAge,
		Compress:   cfg.Runtime.Log.Compress,
	})

	advisory := make(map[int]bool, len(cfg.Runtime.AdvisoryCodes))
	for _, code := range cfg.Runtime.AdvisoryCodes {
		advisory[code] = true
	}

	s := session.New(session.Config{
		Host:             cfg.Gateway.Host,
		Port:             cfg.Gateway.Port,
		ClientID:         cfg.Gateway.ClientID,
		ConnectTimeout:   cfg.Gateway.ConnectTimeout,
		RequestTimeout:   cfg.Gateway.RequestTimeout,
		ThrottleLimit:    cfg.Throttle.Limit,
		ThrottleInterval: cfg.Throttle.Interval,
		Defaults: protocol.Defaults{
			EmptyPrice: cfg.Defaults.EmptyPrice,
			EmptySize:  cfg.Defaults.EmptySize,
			Unset:      cfg.Defaults.Unset,
			Timezone:   cfg.Defaults.Timezone,
		},
		AdvisoryCodes: advisory,
	}, log)

	s.Bus().Subscribe(events.KindOrderStatus, func(ev events.Event) {
		log.WithFields(logrus.Fields{
			"order_id": ev.Trade.Order.OrderID,
			"status":   ev.Trade.Status.Status,
		}).Info("Order status changed.")
	})
	s.Bus().Subscribe(events.KindFill, func(ev events.Event) {
		log.WithFields(logrus.Fields{
			"exec_id": ev.Fill.Execution.ExecID,
			"shares":  ev.Fill.Execution.Shares.String(),
			"price":   ev.Fill.Execution.Price.String(),
		}).Info("Fill.")
	})
	s.Bus().Subscribe(events.KindConnectivity, func(ev events.Event) {
		if ev.Connected.Up {
			log.Info("Gateway session up.")
		} else {
			log.WithFields(logrus.Fields{"reason": ev.Connected.Reason}).Warn("Gateway session down.")
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.ConnectTimeout)
	err = s.Connect(ctx)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("Connect failed.")
	}

	<-sigCh
	s.Disconnect()
	log.Info("Stopped.")
}
