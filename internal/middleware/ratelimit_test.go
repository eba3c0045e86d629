package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// testRateLimiterConfig はテスト用の小さなバースト設定を返す。
func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0), // 補充はほぼ起きない
		GeneralBurst:    3,
		LoginRate:       rate.Limit(1.0 / 60.0),
		LoginBurst:      2,
		CleanupInterval: 1 * time.Hour, // テスト中にクリーンアップが走らないように
	}
}

// rlOKHandler は常に200を返すハンドラー。
func rlOKHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// authedRequest はユーザーIDをコンテキストに持つリクエストを生成する。
func authedRequest(method, path, userID string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

// TestGeneralMiddleware_AllowsWithinBurst はバースト内のリクエストが通ることを検証する。
func TestGeneralMiddleware_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(rlOKHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/test", "user-a"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, w.Result().StatusCode, http.StatusOK)
		}
	}
}

// TestGeneralMiddleware_BlocksBeyondBurst はバーストを超えたリクエストが
// 429で拒否されることを検証する。
func TestGeneralMiddleware_BlocksBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(rlOKHandler())

	// バースト分を消費
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/test", "user-b"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/test", "user-b"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	// Retry-Afterヘッダーが正の整数であること
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["code"] != "rate_limit_exceeded" {
		t.Errorf("code = %q, want %q", body["code"], "rate_limit_exceeded")
	}
}

// TestGeneralMiddleware_IndependentPerUser はユーザーごとに独立した制限が
// 適用されることを検証する。
func TestGeneralMiddleware_IndependentPerUser(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(rlOKHandler())

	// user-cのバーストを使い切る
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/test", "user-c"))
	}

	// user-dは影響を受けない
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/test", "user-d"))

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestGeneralMiddleware_NoUserID_Returns401 は未認証コンテキストで
// 401が返されることを検証する。
func TestGeneralMiddleware_NoUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(rlOKHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestLoginMiddleware_KeyedByClientIP はログイン系制限がIP単位で
// 適用されることを検証する。
func TestLoginMiddleware_KeyedByClientIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.LoginMiddleware()(rlOKHandler())

	// 同一IPからバースト分 + 1
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, w.Result().StatusCode, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "203.0.113.1:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}

	// 別IPは影響を受けない
	req2 := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req2.RemoteAddr = "203.0.113.2:12345"
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)

	if w2.Result().StatusCode != http.StatusOK {
		t.Errorf("other IP: status = %d, want %d", w2.Result().StatusCode, http.StatusOK)
	}
}

// TestLoginMiddleware_UsesForwardedForHeader はX-Forwarded-Forの先頭エントリが
// 制限キーとして使われることを検証する。
func TestLoginMiddleware_UsesForwardedForHeader(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.LoginMiddleware()(rlOKHandler())

	// プロキシ経由: RemoteAddrは同じだがX-Forwarded-Forが異なる
	for _, ip := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:443"
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("ip %s: status = %d, want %d", ip, w.Result().StatusCode, http.StatusOK)
		}
	}

	if got := rl.LoginLimiterCount(); got != 3 {
		t.Errorf("LoginLimiterCount = %d, want 3", got)
	}
}

// TestClientIP_Extraction はクライアントIP抽出を検証する。
func TestClientIP_Extraction(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{name: "remote_addr_only", remoteAddr: "192.0.2.1:8080", want: "192.0.2.1"},
		{name: "forwarded_single", remoteAddr: "10.0.0.1:443", forwarded: "203.0.113.9", want: "203.0.113.9"},
		{name: "forwarded_chain", remoteAddr: "10.0.0.1:443", forwarded: "203.0.113.9, 10.0.0.2", want: "203.0.113.9"},
		{name: "no_port", remoteAddr: "192.0.2.5", want: "192.0.2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestRateLimiter_GeneralAndLoginIndependent はAPI全般制限とログイン系制限が
// 独立に動作することを検証する。
func TestRateLimiter_GeneralAndLoginIndependent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	loginHandler := rl.LoginMiddleware()(rlOKHandler())
	generalHandler := rl.GeneralMiddleware()(rlOKHandler())

	// ログイン系のバーストを使い切る
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:1000"
		w := httptest.NewRecorder()
		loginHandler.ServeHTTP(w, req)
	}

	// API全般は同一ユーザーでも通る
	w := httptest.NewRecorder()
	generalHandler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/feed", "user-e"))

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestRateLimiter_Cleanup_RemovesStaleEntries は期限切れエントリが
// クリーンアップで削除されることを検証する。
func TestRateLimiter_Cleanup_RemovesStaleEntries(t *testing.T) {
	config := testRateLimiterConfig()
	config.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(rlOKHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/test", "user-stale"))

	if got := rl.GeneralLimiterCount(); got != 1 {
		t.Fatalf("GeneralLimiterCount = %d, want 1", got)
	}

	// TTL（CleanupInterval * 2）経過 + クリーンアップ実行を待つ
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rl.GeneralLimiterCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("GeneralLimiterCount = %d, want 0 after cleanup", rl.GeneralLimiterCount())
}

// TestRateLimiter_ConcurrentAccess は並行アクセスで競合が起きないことを検証する。
// -race付きで実行することを想定している。
func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(rlOKHandler())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := "user-concurrent"
			if n%2 == 0 {
				userID = "user-concurrent-2"
			}
			for j := 0; j < 20; j++ {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/test", userID))
			}
		}(i)
	}
	wg.Wait()

	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", got)
	}
}

// TestDefaultRateLimiterConfig_Values はデフォルト設定値を検証する。
func TestDefaultRateLimiterConfig_Values(t *testing.T) {
	config := DefaultRateLimiterConfig()

	if config.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", config.GeneralBurst)
	}
	if config.LoginBurst != 10 {
		t.Errorf("LoginBurst = %d, want 10", config.LoginBurst)
	}
	if config.GeneralRate != rate.Limit(2.0) {
		t.Errorf("GeneralRate = %v, want 2.0", config.GeneralRate)
	}
}
