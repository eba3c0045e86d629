package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thejoa703/sns/internal/identity"
	"github.com/thejoa703/sns/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	AccessVerifier    middleware.AccessVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetrics // nilならステータスコードのメトリクス記録を無効化

	// サービス
	AuthService    AuthServiceInterface
	SignupService  SignupServiceInterface
	UserService    UserServiceInterface
	SocialUsers    SocialUserService
	SessionIssuer  SessionIssuer
	PostService    PostServiceInterface
	CommentService CommentServiceInterface
	FeedService    FeedServiceInterface
	OAuthProviders map[string]identity.OAuthProvider

	// メトリクス
	AuthMetrics    AuthMetrics
	PostMetrics    PostMetrics
	CommentMetrics CommentMetrics
	FeedMetrics    FeedMetrics

	// 設定
	AuthConfig AuthHandlerConfig
	UploadDir  string // 空ならアップロード済みファイルの配信を無効化

	// MetricsHandler は/metricsに公開するハンドラー。nilなら公開しない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging →
//	  （保護ルートのみ）Auth → RateLimit(General)
//
// ログイン・サインアップはIP単位のレート制限（LoginMiddleware）を適用する。
// リフレッシュトークンCookieを使うルートはCSRF検証を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.SignupService, deps.AuthMetrics, deps.AuthConfig)
	oauthHandler := NewOAuthHandler(deps.OAuthProviders, deps.SocialUsers, deps.SessionIssuer, deps.AuthMetrics, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.AuthMetrics, deps.AuthConfig)
	postHandler := NewPostHandler(deps.PostService, deps.PostMetrics)
	commentHandler := NewCommentHandler(deps.CommentService, deps.CommentMetrics)
	feedHandler := NewFeedHandler(deps.FeedService, deps.FeedMetrics)

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.AuthConfig.CookieSecure,
		CookieDomain: deps.AuthConfig.CookieDomain,
	}

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig).ServeHTTP)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		// サインアップ・ログインはIP単位のレート制限
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/signup", authHandler.Signup)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)

		// リフレッシュとログアウトはCookie認証のためCSRF検証を挟む。
		// ログアウトをBearer必須にするとアクセストークン失効後に
		// セッションを破棄できなくなるため、ここに置く。
		r.With(middleware.NewCSRFMiddleware(csrfConfig)).Post("/refresh", authHandler.Refresh)
		r.With(middleware.NewCSRFMiddleware(csrfConfig)).Post("/logout", authHandler.Logout)

		// meはアクセストークン優先・リフレッシュCookieフォールバック
		r.With(middleware.NewOptionalAuthMiddleware(deps.AccessVerifier)).Get("/me", authHandler.Me)
	})

	// ソーシャルログイン（google/kakao/naver）
	r.Route("/oauth2", func(r chi.Router) {
		r.Get("/login/{provider}", oauthHandler.Login)
		r.Get("/callback/{provider}", oauthHandler.Callback)
	})

	// 重複チェックはサインアップフォームから認証前に呼ばれる
	r.Route("/api/users", func(r chi.Router) {
		r.Get("/check-email", userHandler.CheckEmail)
		r.Get("/check-nickname", userHandler.CheckNickname)
		r.Get("/count", userHandler.CountUsers)
	})

	// アップロード済みプロフィール画像の配信
	if deps.UploadDir != "" {
		fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir)))
		r.Get("/uploads/*", fileServer.ServeHTTP)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.AccessVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プロフィール管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Delete("/", userHandler.Withdraw)
			r.Put("/nickname", userHandler.UpdateNickname)
			r.Put("/profile-image", userHandler.UpdateProfileImage)
		})

		// 投稿管理
		r.Route("/api/posts", func(r chi.Router) {
			r.Post("/", postHandler.CreatePost)
			r.Get("/", postHandler.ListPosts)
			r.Get("/count", postHandler.CountPosts)
			r.Get("/liked", postHandler.ListLikedPosts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.GetPost)
				r.Put("/", postHandler.UpdatePost)
				r.Delete("/", postHandler.DeletePost)

				r.Post("/like", postHandler.LikePost)
				r.Delete("/like", postHandler.UnlikePost)
				r.Get("/like", postHandler.GetLikeStatus)

				r.Post("/retweet", postHandler.RetweetPost)
				r.Delete("/retweet", postHandler.UnretweetPost)
				r.Get("/retweet", postHandler.GetRetweetStatus)

				r.Post("/comments", commentHandler.CreateComment)
				r.Get("/comments", commentHandler.ListComments)
				r.Get("/comments/count", commentHandler.CountComments)
			})
		})

		// コメントの編集・削除はコメントID単位
		r.Route("/api/comments/{id}", func(r chi.Router) {
			r.Put("/", commentHandler.UpdateComment)
			r.Delete("/", commentHandler.DeleteComment)
		})

		// フィード
		r.Get("/api/feed", feedHandler.GetFeed)
	})

	return r
}
