// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/thejoa703/sns/internal/auth"
	"github.com/thejoa703/sns/internal/comment"
	"github.com/thejoa703/sns/internal/config"
	"github.com/thejoa703/sns/internal/database"
	"github.com/thejoa703/sns/internal/feed"
	"github.com/thejoa703/sns/internal/handler"
	"github.com/thejoa703/sns/internal/identity"
	"github.com/thejoa703/sns/internal/logger"
	"github.com/thejoa703/sns/internal/metrics"
	"github.com/thejoa703/sns/internal/middleware"
	"github.com/thejoa703/sns/internal/post"
	"github.com/thejoa703/sns/internal/repository"
	"github.com/thejoa703/sns/internal/security"
	"github.com/thejoa703/sns/internal/session"
	"github.com/thejoa703/sns/internal/storage"
	"github.com/thejoa703/sns/internal/token"
	"github.com/thejoa703/sns/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DBとRedisへの接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. Redis接続（リフレッシュトークンストア）
	redisClient, err := session.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established")

	sessionStore := session.NewRedisStore(redisClient)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	retweetRepo := repository.NewPostgresRetweetRepo(db)
	likeRepo := repository.NewPostgresLikeRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)

	// 4. トークン発行機とセキュリティサービスの初期化
	issuer := token.NewIssuer(token.Config{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	hasher := auth.NewPasswordHasher()
	ssrfGuard := security.NewSSRFGuard()
	avatarFetcher := security.NewAvatarFetcher(ssrfGuard)
	sanitizer := security.NewContentSanitizer()
	fileStore := storage.NewLocalFileStore(cfg.UploadDir)

	// 5. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionStore, issuer, hasher)
	userService := user.NewService(userRepo, sessionStore, hasher, avatarFetcher, fileStore)
	postService := post.NewService(postRepo, retweetRepo, likeRepo, sanitizer)
	commentService := comment.NewService(commentRepo, postRepo, userRepo, sanitizer)
	feedService := feed.NewService(postRepo)

	// 6. OAuthプロバイダーの初期化（クライアントID未設定のプロバイダーは無効）
	providers, err := buildOAuthProviders(cfg)
	if err != nil {
		return fmt.Errorf("failed to build oauth providers: %w", err)
	}

	// 7. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 8. レート制限（configはreq/min単位、limiterはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.LoginRate = rate.Limit(float64(cfg.RateLimitAuth) / 60)
	rateLimiterCfg.LoginBurst = cfg.RateLimitAuth
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 9. ルーターの構築
	deps := &handler.RouterDeps{
		AccessVerifier:    issuer,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		HTTPMetrics:       collector,

		AuthService:    authService,
		SignupService:  userService,
		UserService:    userService,
		SocialUsers:    userService,
		SessionIssuer:  authService,
		PostService:    postService,
		CommentService: commentService,
		FeedService:    feedService,
		OAuthProviders: providers,

		AuthMetrics:    collector,
		PostMetrics:    collector,
		CommentMetrics: collector,
		FeedMetrics:    collector,

		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			RefreshMaxAge: int(cfg.RefreshTokenTTL.Seconds()),
		},
		UploadDir: cfg.UploadDir,

		MetricsHandler: metrics.SetupMetricsRoute(registry),
	}

	router := handler.NewRouter(deps)

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildOAuthProviders は設定からソーシャルログインのプロバイダーを構築する。
// クライアントIDが設定されているプロバイダーのみ有効になる。
func buildOAuthProviders(cfg *config.Config) (map[string]identity.OAuthProvider, error) {
	configs := map[string]identity.OAuthConfig{
		identity.ProviderGoogle: {
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		},
		identity.ProviderKakao: {
			ClientID:     cfg.KakaoClientID,
			ClientSecret: cfg.KakaoClientSecret,
			RedirectURL:  cfg.KakaoRedirectURL,
		},
		identity.ProviderNaver: {
			ClientID:     cfg.NaverClientID,
			ClientSecret: cfg.NaverClientSecret,
			RedirectURL:  cfg.NaverRedirectURL,
		},
	}

	providers := make(map[string]identity.OAuthProvider)
	for name, providerCfg := range configs {
		if providerCfg.ClientID == "" {
			continue
		}
		provider, err := identity.NewProvider(name, providerCfg)
		if err != nil {
			return nil, err
		}
		providers[name] = provider
		slog.Info("oauth provider enabled", slog.String("provider", name))
	}

	return providers, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
