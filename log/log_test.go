//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package log_test

import (
	"testing"

	"github.com/CodeGandee/invokeai-go-client/log"
)

type noopLogger struct{}

func (n *noopLogger) Debug(args ...any)                 {}
func (n *noopLogger) Debugf(format string, args ...any) {}
func (n *noopLogger) Info(args ...any)                  {}
func (n *noopLogger) Infof(format string, args ...any)  {}
func (n *noopLogger) Warn(args ...any)                  {}
func (n *noopLogger) Warnf(format string, args ...any)  {}
func (n *noopLogger) Error(args ...any)                 {}
func (n *noopLogger) Errorf(format string, args ...any) {}
func (n *noopLogger) Fatal(args ...any)                 {}
func (n *noopLogger) Fatalf(format string, args ...any) {}

func TestLog(t *testing.T) {
	original := log.Default
	defer func() { log.Default = original }()

	log.Default = &noopLogger{}
	log.Debug("test")
	log.Debugf("test")
	log.Info("test")
	log.Infof("test")
	log.Warn("test")
	log.Warnf("test")
	log.Error("test")
	log.Errorf("test")
	log.Fatal("test")
	log.Fatalf("test")
}

func TestSetLevel(t *testing.T) {
	for _, level := range []string{
		log.LevelDebug,
		log.LevelInfo,
		log.LevelWarn,
		log.LevelError,
		log.LevelFatal,
		"unknown",
	} {
		log.SetLevel(level)
	}
	log.SetLevel(log.LevelInfo)
}
