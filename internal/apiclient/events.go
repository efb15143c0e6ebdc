package apiclient

import "sync"

// UnauthorizedEvent はリモートAPIが401を返したことを表す。
type UnauthorizedEvent struct {
	// Token は拒否されたリクエストに付与していたベアラートークン。なければ空。
	Token  string
	Method string
	Path   string
}

// Broadcaster は401の発生を購読者に配信する。
// クライアントは認証状態を知らず、購読者側がログアウト等の対応を行う。
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]func(UnauthorizedEvent)
	nextID int
}

// NewBroadcaster はBroadcasterを生成する。
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(UnauthorizedEvent))}
}

// Subscribe は購読者を登録し、登録解除用の関数を返す。
func (b *Broadcaster) Subscribe(fn func(UnauthorizedEvent)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish はイベントを全ての購読者に同期的に配信する。
func (b *Broadcaster) Publish(e UnauthorizedEvent) {
	b.mu.RLock()
	fns := make([]func(UnauthorizedEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
