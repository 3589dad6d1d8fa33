// Package safeexit 收到退出信号时按注册的逆序执行清理函数
package safeexit

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

// SafeExit 安全退出
type SafeExit struct {
	funcs []func()
	mu    sync.Mutex
	once  sync.Once
	log   logrus.FieldLogger

	// Exit is called after the hooks ran, os.Exit by default.
	Exit func(code int)
}

// New log may be nil.
func New(log logrus.FieldLogger) *SafeExit {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SafeExit{log: log, Exit: os.Exit}
}

// Register 注册清理函数
func (s *SafeExit) Register(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funcs = append(s.funcs, f)
}

// Run executes the hooks once, last registered first.
func (s *SafeExit) Run() {
	s.once.Do(func() {
		s.mu.Lock()
		funcs := s.funcs
		s.funcs = nil
		s.mu.Unlock()

		for i := len(funcs) - 1; i >= 0; i-- {
			funcs[i]()
		}
	})
}

// Listen 监听系统信号; on SIGHUP/SIGINT/SIGTERM/SIGQUIT the hooks run and
// the process exits with code 1. The returned func stops listening.
func (s *SafeExit) Listen() (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigs:
			s.log.Warnf("收到系统信号 %s, 正在停止任务, 请稍后", sig)
			s.Run()
			s.Exit(1)
		case <-done:
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
		})
	}
}
