package power

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

const (
	logindPath      dbus.ObjectPath = "/org/freedesktop/login1"
	logindInterface                 = "org.freedesktop.login1.Manager"
	prepareForSleep                 = "PrepareForSleep"
)

// NewMonitor subscribes to logind sleep signals, falling back to a gap
// detector when the system bus is unavailable.
func NewMonitor(ctx context.Context, clock clockwork.Clock, pollInterval time.Duration) Monitor {
	m, err := newLogindMonitor()
	if err != nil {
		log.Warnf("logind sleep signals unavailable, polling the clock instead: %v", err)
		return NewGapDetector(ctx, clock, pollInterval)
	}
	log.Debug("listening for logind PrepareForSleep")
	return m
}

type logindMonitor struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
	events  chan Event

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newLogindMonitor() (*logindMonitor, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember(prepareForSleep),
	)
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warnf("got an error closing dbus connection, err: %s", closeErr)
		}
		return nil, fmt.Errorf("add match for %s: %w", prepareForSleep, err)
	}

	m := &logindMonitor{
		conn:    conn,
		signals: make(chan *dbus.Signal, 4),
		events:  make(chan Event, 1),
		done:    make(chan struct{}),
	}
	conn.Signal(m.signals)

	m.wg.Add(1)
	go m.loop()
	return m, nil
}

func (m *logindMonitor) loop() {
	defer m.wg.Done()
	for {
		var sig *dbus.Signal
		select {
		case <-m.done:
			return
		case s, ok := <-m.signals:
			if !ok {
				return
			}
			sig = s
		}

		ev, ok := eventFromSignal(sig)
		if !ok {
			continue
		}
		log.Infof("logind reported %s", ev)
		select {
		case m.events <- ev:
		case <-m.done:
			return
		}
	}
}

// eventFromSignal maps PrepareForSleep(true) to Suspend and
// PrepareForSleep(false) to Resume.
func eventFromSignal(sig *dbus.Signal) (Event, bool) {
	if sig == nil || sig.Name != logindInterface+"."+prepareForSleep || len(sig.Body) != 1 {
		return 0, false
	}
	start, ok := sig.Body[0].(bool)
	if !ok {
		return 0, false
	}
	if start {
		return Suspend, true
	}
	return Resume, true
}

func (m *logindMonitor) Events() <-chan Event {
	return m.events
}

func (m *logindMonitor) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		m.conn.RemoveSignal(m.signals)
		err = m.conn.Close()
		m.wg.Wait()
	})
	return err
}
