// Package logx contains logging extensions.
package logx

import (
	"fmt"
	"sync"
	"time"

	"github.com/ooni/geoquery/internal/model"
)

// PrefixLogger is a logger with a prefix. The zero value of this
// struct is invalid; please, fill all the fields marked as MANDATORY.
type PrefixLogger struct {
	// Prefix is the MANDATORY prefix.
	Prefix string

	// Logger is the MANDATORY underlying logger.
	Logger model.Logger
}

var _ model.Logger = &PrefixLogger{}

// Debug implements model.Logger.
func (p *PrefixLogger) Debug(msg string) {
	p.Logger.Debug(p.Prefix + msg)
}

// Debugf implements model.Logger.
func (p *PrefixLogger) Debugf(format string, v ...interface{}) {
	p.Logger.Debugf(p.Prefix+format, v...)
}

// Info implements model.Logger.
func (p *PrefixLogger) Info(msg string) {
	p.Logger.Info(p.Prefix + msg)
}

// Infof implements model.Logger.
func (p *PrefixLogger) Infof(format string, v ...interface{}) {
	p.Logger.Infof(p.Prefix+format, v...)
}

// Warn implements model.Logger.
func (p *PrefixLogger) Warn(msg string) {
	p.Logger.Warn(p.Prefix + msg)
}

// Warnf implements model.Logger.
func (p *PrefixLogger) Warnf(format string, v ...interface{}) {
	p.Logger.Warnf(p.Prefix+format, v...)
}

// OperationLogger logs the beginning and the end of an operation. If the
// operation takes longer than half a second, it also emits an info message
// saying the operation is still in progress, so slow backends become visible.
type OperationLogger struct {
	maxwait time.Duration
	logger  model.Logger
	message string
	once    *sync.Once
	sighup  chan any
	t0      time.Time
	wg      *sync.WaitGroup
}

// NewOperationLogger creates a new [*OperationLogger] and starts
// timing the operation described by format and v.
func NewOperationLogger(logger model.Logger, format string, v ...any) *OperationLogger {
	ol := &OperationLogger{
		maxwait: 500 * time.Millisecond,
		logger:  logger,
		message: fmt.Sprintf(format, v...),
		once:    &sync.Once{},
		sighup:  make(chan any),
		t0:      time.Now(),
		wg:      &sync.WaitGroup{},
	}
	ol.wg.Add(1)
	go ol.maybeEmitProgress()
	return ol
}

func (ol *OperationLogger) maybeEmitProgress() {
	defer ol.wg.Done()
	timer := time.NewTimer(ol.maxwait)
	defer timer.Stop()
	select {
	case <-timer.C:
		ol.logger.Infof("%s... in progress", ol.message)
	case <-ol.sighup:
	}
}

// Stop stops the operation logger and logs the outcome. Calling
// Stop more than once is harmless and logs just once.
func (ol *OperationLogger) Stop(err error) {
	ol.once.Do(func() {
		close(ol.sighup)
		ol.wg.Wait()
		emit := ol.logger.Debugf
		if err != nil {
			emit = ol.logger.Warnf
		}
		emit("%s... %s in %s", ol.message, model.ErrorToStringOrOK(err), time.Since(ol.t0))
	})
}
