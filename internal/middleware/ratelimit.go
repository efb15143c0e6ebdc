package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/storefront/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	AddressRate     rate.Limit    // 接続元アドレスごとのAPI全般のレート（req/sec）
	AddressBurst    int           // 接続元アドレスごとのバーストサイズ
	AuthRate        rate.Limit    // ログイン・登録のレート（req/sec、接続元アドレス単位）
	AuthBurst       int           // ログイン・登録のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はAPI全般120 req/min、ログイン・登録10 req/minの設定を返す。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinuteRateLimiterConfig(120, 10)
}

// addressFactor は接続元アドレス単位の上限を訪問者単位の何倍にするか。
// NAT配下の複数の訪問者を考慮する。
const addressFactor = 4

// PerMinuteRateLimiterConfig は1分あたりの回数からレート制限の設定を生成する。
// バーストは1分あたりの回数と同じ。
func PerMinuteRateLimiterConfig(general, auth int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(general) / 60.0),
		GeneralBurst:    general,
		AddressRate:     rate.Limit(float64(general*addressFactor) / 60.0),
		AddressBurst:    general * addressFactor,
		AuthRate:        rate.Limit(float64(auth) / 60.0),
		AuthBurst:       auth,
		CleanupInterval: 5 * time.Minute,
	}
}

// keyedLimiter はキーごとのrate.Limiterを保持する。
type keyedLimiter struct {
	name  string
	limit rate.Limit
	burst int
	key   func(r *http.Request) string

	mu       sync.Mutex
	limiters map[string]*visitorLimiter
}

// visitorLimiter は訪問者ごとのリミッターと最終アクセス時刻。
type visitorLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newKeyedLimiter(name string, limit rate.Limit, burst int, key func(r *http.Request) string) *keyedLimiter {
	return &keyedLimiter{
		name:     name,
		limit:    limit,
		burst:    burst,
		key:      key,
		limiters: make(map[string]*visitorLimiter),
	}
}

func (k *keyedLimiter) allow(key string, now time.Time) bool {
	k.mu.Lock()
	vl, ok := k.limiters[key]
	if !ok {
		vl = &visitorLimiter{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.limiters[key] = vl
	}
	vl.lastAccess = now
	k.mu.Unlock()

	return vl.limiter.AllowN(now, 1)
}

func (k *keyedLimiter) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

func (k *keyedLimiter) sweep(now time.Time, ttl time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, vl := range k.limiters {
		if now.Sub(vl.lastAccess) > ttl {
			delete(k.limiters, key)
		}
	}
}

func (k *keyedLimiter) middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := k.key(r)
			if !k.allow(key, time.Now()) {
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", k.name),
				)
				writeRateLimitResponse(w, k.limit)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はレート制限を管理する。
// 訪問者IDはブラウザが差し替えられるため、API全般は訪問者単位と接続元アドレス単位の両方で、
// ログイン・登録は接続元アドレス単位で制限する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *keyedLimiter
	address *keyedLimiter
	auth    *keyedLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.AddressBurst <= 0 {
		config.AddressRate = config.GeneralRate * addressFactor
		config.AddressBurst = config.GeneralBurst * addressFactor
	}
	rl := &RateLimiter{
		config:  config,
		general: newKeyedLimiter("general", config.GeneralRate, config.GeneralBurst, limiterKey),
		address: newKeyedLimiter("address", config.AddressRate, config.AddressBurst, addressKey),
		auth:    newKeyedLimiter("auth", config.AuthRate, config.AuthBurst, addressKey),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// 訪問者ミドルウェアの後に配置する。接続元アドレス単位の上限を先に確認し、
// 続いて訪問者単位（訪問者IDがない場合は接続元アドレス）で制限する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	byAddress := rl.address.middleware()
	byVisitor := rl.general.middleware()
	return func(next http.Handler) http.Handler {
		return byAddress(byVisitor(next))
	}
}

// AuthMiddleware はログイン・登録専用のレート制限ミドルウェアを返す。
// Cookieの差し替えで回避されないよう接続元アドレス単位で制限する。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return rl.auth.middleware()
}

// GeneralLimiterCount は管理中のAPI全般リミッターの数を返す。テスト用。
func (rl *RateLimiter) GeneralLimiterCount() int { return rl.general.len() }

// AddressLimiterCount は管理中の接続元アドレス単位リミッターの数を返す。テスト用。
func (rl *RateLimiter) AddressLimiterCount() int { return rl.address.len() }

// AuthLimiterCount は管理中のログイン・登録リミッターの数を返す。テスト用。
func (rl *RateLimiter) AuthLimiterCount() int { return rl.auth.len() }

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.sweep(now, ttl)
	rl.address.sweep(now, ttl)
	rl.auth.sweep(now, ttl)
}

// limiterKey は訪問者単位のキーを返す。訪問者IDがない場合は接続元アドレスを使う。
func limiterKey(r *http.Request) string {
	if id, err := VisitorIDFromContext(r.Context()); err == nil {
		return "visitor:" + id
	}
	return addressKey(r)
}

// addressKey は接続元アドレスのキーを返す。
func addressKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが1つ補充されるまでの秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitError())
}
