package guard

import (
	"sync"
	"time"
)

// Countdown は一定間隔で残り回数を通知し、0になったら期限切れの処理を呼ぶタイマー。
// Cancelで停止でき、停止後にコールバックが呼ばれることはない。
type Countdown struct {
	mu      sync.Mutex
	stopped bool
	expired bool
	stop    chan struct{}
	done    chan struct{}
}

// StartCountdown はticks回のカウントダウンを開始する。
// intervalごとに残り回数でonTickを呼び、残りが0になった時点でonTickの代わりにonExpireを呼ぶ。
// 開始時点の残り回数（ticks）は通知しない。
func StartCountdown(ticks int, interval time.Duration, onTick func(remaining int), onExpire func()) *Countdown {
	c := &Countdown{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go c.run(ticks, interval, onTick, onExpire)
	return c
}

func (c *Countdown) run(ticks int, interval time.Duration, onTick func(int), onExpire func()) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	remaining := ticks
	for remaining > 0 {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		remaining--

		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			return
		}
		if remaining == 0 {
			c.expired = true
		}
		c.mu.Unlock()

		if remaining > 0 {
			if onTick != nil {
				onTick(remaining)
			}
			continue
		}
		if onExpire != nil {
			onExpire()
		}
	}
}

// Cancel はカウントダウンを停止する。
// この呼び出しによって期限切れを防いだ場合にtrueを返す。
// 既に期限切れになっていた場合や2回目以降の呼び出しではfalseを返す。
func (c *Countdown) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.expired {
		return false
	}
	c.stopped = true
	close(c.stop)
	return true
}

// Done はゴルーチンが終了すると閉じられるチャネルを返す。
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
