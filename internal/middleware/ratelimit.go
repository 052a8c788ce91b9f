package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/classhub/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	Window          time.Duration // 固定ウィンドウの長さ
	GeneralLimit    int           // API全般のウィンドウあたり最大リクエスト数
	LoginLimit      int           // ログイン試行のウィンドウあたり最大リクエスト数
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 要件: API全般 200 req/15min、ログイン試行 5 req/15min
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Window:          15 * time.Minute,
		GeneralLimit:    200,
		LoginLimit:      5,
		CleanupInterval: 5 * time.Minute,
	}
}

// RejectionRecorder はレート制限による拒否を記録する。
type RejectionRecorder interface {
	RecordRateLimitRejected(policy string)
}

// windowBucket はキーごとのウィンドウ内カウントを保持する。
type windowBucket struct {
	count       int
	windowStart time.Time
}

// RateLimiter はキーごとの固定ウィンドウレート制限を管理する。
// ウィンドウ開始からWindow経過後の最初のリクエストでカウントがリセットされる。
// API全般のレート制限とログイン試行のレート制限の2種類を提供する。
type RateLimiter struct {
	config  RateLimiterConfig
	metrics RejectionRecorder

	generalMu      sync.Mutex
	generalBuckets map[string]*windowBucket

	loginMu      sync.Mutex
	loginBuckets map[string]*windowBucket

	stopCh chan struct{}

	now func() time.Time // テスト用に時刻を差し替え可能
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
// metricsはnilでもよい。
func NewRateLimiter(config RateLimiterConfig, metrics RejectionRecorder) *RateLimiter {
	rl := &RateLimiter{
		config:         config,
		metrics:        metrics,
		generalBuckets: make(map[string]*windowBucket),
		loginBuckets:   make(map[string]*windowBucket),
		stopCh:         make(chan struct{}),
		now:            time.Now,
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// 認証済みリクエストはアカウントIDを、未認証リクエストはクライアントIPをキーとする。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestKey(r)

			allowed, retryAfter := rl.allow(&rl.generalMu, rl.generalBuckets, key, rl.config.GeneralLimit)
			if !allowed {
				rl.reject(w, "general", key, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoginMiddleware はログイン試行専用のレート制限ミドルウェアを返す。
// クライアントIPをキーとし、API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) LoginMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			allowed, retryAfter := rl.allow(&rl.loginMu, rl.loginBuckets, key, rl.config.LoginLimit)
			if !allowed {
				rl.reject(w, "login", key, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralBucketCount は現在管理されているAPI全般バケットのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralBucketCount() int {
	rl.generalMu.Lock()
	defer rl.generalMu.Unlock()
	return len(rl.generalBuckets)
}

// LoginBucketCount は現在管理されているログイン試行バケットのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LoginBucketCount() int {
	rl.loginMu.Lock()
	defer rl.loginMu.Unlock()
	return len(rl.loginBuckets)
}

// allow はキーのウィンドウ内カウントを進め、上限以内かを判定する。
// ウィンドウが経過していればカウントを1から数え直す。
// 拒否時はウィンドウがリセットされるまでの残り時間を返す。
func (rl *RateLimiter) allow(mu *sync.Mutex, buckets map[string]*windowBucket, key string, limit int) (bool, time.Duration) {
	now := rl.now()

	mu.Lock()
	defer mu.Unlock()

	bucket, exists := buckets[key]
	if !exists || now.Sub(bucket.windowStart) >= rl.config.Window {
		buckets[key] = &windowBucket{count: 1, windowStart: now}
		return true, 0
	}

	if bucket.count >= limit {
		return false, bucket.windowStart.Add(rl.config.Window).Sub(now)
	}
	bucket.count++
	return true, 0
}

func (rl *RateLimiter) reject(w http.ResponseWriter, policy, key string, retryAfter time.Duration) {
	writeRateLimitResponse(w, retryAfter)
	if rl.metrics != nil {
		rl.metrics.RecordRateLimitRejected(policy)
	}
	slog.Warn("rate limit exceeded",
		slog.String("key", key),
		slog.String("limit_type", policy),
	)
}

// requestKey はレート制限のキーを決定する。
// 認証済みならアカウントID、未認証ならクライアントIP。
func requestKey(r *http.Request) string {
	if claims, err := ClaimsFromContext(r.Context()); err == nil {
		return "account:" + claims.AccountID
	}
	return "ip:" + clientIP(r)
}

// clientIP はリクエスト元のIPアドレスを返す。
// リバースプロキシ背後での運用を想定し、X-Real-IP、X-Forwarded-For
// （先頭エントリ）の順で参照し、どちらもなければRemoteAddrを使う。
// ポート番号は除去する。
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup はウィンドウ開始から2ウィンドウ以上経過したエントリを削除する。
func (rl *RateLimiter) cleanup() {
	cutoff := rl.now().Add(-2 * rl.config.Window)

	rl.generalMu.Lock()
	for key, bucket := range rl.generalBuckets {
		if bucket.windowStart.Before(cutoff) {
			delete(rl.generalBuckets, key)
		}
	}
	rl.generalMu.Unlock()

	rl.loginMu.Lock()
	for key, bucket := range rl.loginBuckets {
		if bucket.windowStart.Before(cutoff) {
			delete(rl.loginBuckets, key)
		}
	}
	rl.loginMu.Unlock()
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはウィンドウがリセットされるまでの秒数（切り上げ）を設定する。
func writeRateLimitResponse(w http.ResponseWriter, retryAfter time.Duration) {
	retryAfterSec := int((retryAfter + time.Second - 1) / time.Second)
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitError())
}
