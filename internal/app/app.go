package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nufounders/nufounders/internal/auth"
	"github.com/nufounders/nufounders/internal/config"
	"github.com/nufounders/nufounders/internal/database"
	"github.com/nufounders/nufounders/internal/handler"
	"github.com/nufounders/nufounders/internal/logger"
	"github.com/nufounders/nufounders/internal/metrics"
	"github.com/nufounders/nufounders/internal/middleware"
	"github.com/nufounders/nufounders/internal/repository"
	"github.com/nufounders/nufounders/internal/security"
	"github.com/nufounders/nufounders/internal/session"
	"github.com/nufounders/nufounders/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルを反映する
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Warn("invalid LOG_LEVEL; using info", slog.String("value", cfg.LogLevel))
	}
	logger.SetupDefault(w, level)

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
// ユーザーストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ユーザーストア
	store, err := openUserStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. ルーターの構築
	router, cleanup, err := buildRouter(cfg, store)
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. HTTPサーバーの起動
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
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// userStore はプロセス起動時に1回だけ開くユーザー永続化層。
type userStore struct {
	users  repository.UserRepository
	health repository.HealthChecker
	close  func() error
}

// Close はDB接続プールを閉じる。インメモリストアでは何もしない。
func (s *userStore) Close() {
	if s.close == nil {
		return
	}
	if err := s.close(); err != nil {
		slog.Warn("failed to close database", slog.String("error", err.Error()))
	}
}

// openUserStore はDATABASE_URLが設定されていればPostgreSQL、なければインメモリのストアを返す。
func openUserStore(ctx context.Context, cfg *config.Config) (*userStore, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set; users are kept in memory and lost on restart")
		mem := repository.NewMemoryUserRepo()
		return &userStore{users: mem, health: mem}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	return &userStore{
		users:  repository.NewPostgresUserRepo(db),
		health: db,
		close:  db.Close,
	}, nil
}

// buildRouter は設定とユーザーストアから全コンポーネントを組み立てる。
// 返り値のcleanupはレート制限のバックグラウンド処理を停止する。
func buildRouter(cfg *config.Config, store *userStore) (http.Handler, func(), error) {
	// 1. プロバイダー
	httpClient, err := newProviderClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	registry := auth.NewRegistry(
		auth.NewGoogleAdapter(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			TokenURL:     cfg.GoogleTokenURL,
			UserInfoURL:  cfg.GoogleUserInfoURL,
			HTTPClient:   httpClient,
		}),
		auth.NewGitHubAdapter(auth.GitHubConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			TokenURL:     cfg.GitHubTokenURL,
			APIURL:       cfg.GitHubAPIURL,
			HTTPClient:   httpClient,
		}),
	)

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(reg)

	// 3. セッションと認証
	codec := session.NewCodec(cfg.JWTSecret, cfg.AppID)
	signIn := auth.NewService(
		registry, store.users, codec, security.NewNameSanitizer(), mc,
		auth.ServiceConfig{OwnerOpenID: cfg.OwnerOpenID},
	)
	authenticator := auth.NewAuthenticator(codec, store.users, mc)

	// 4. レート制限（req/min）
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitRPC, cfg.RateLimitOAuth),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFProtection:    cfg.CSRFProtection,

		SignInService:   signIn,
		Authenticator:   authenticator,
		CallbackURL:     cfg.OAuthCallbackURL(),
		SuccessRedirect: cfg.OAuthSuccessRedirect,

		UserService: user.NewService(store.users, cfg.OwnerOpenID),

		HealthChecker:  store.health,
		Metrics:        mc,
		MetricsHandler: metrics.Handler(reg),
	})

	slog.Info("providers registered", slog.Any("providers", registry.Names()))

	return router, rateLimiter.Stop, nil
}

// newProviderClient はプロバイダー通信用のHTTPクライアントを返す。
// OUTBOUND_SSRF_GUARDが有効な場合は上書きされたエンドポイントも静的に検証する。
func newProviderClient(cfg *config.Config) (*http.Client, error) {
	if !cfg.OutboundSSRFGuard {
		slog.Warn("outbound SSRF guard is disabled")
		return &http.Client{Timeout: cfg.ProviderTimeout}, nil
	}

	guard := security.NewOutboundGuard()
	for _, endpoint := range []string{cfg.GoogleTokenURL, cfg.GoogleUserInfoURL, cfg.GitHubTokenURL, cfg.GitHubAPIURL} {
		if endpoint == "" {
			continue
		}
		if err := guard.ValidateEndpoint(endpoint); err != nil {
			return nil, fmt.Errorf("provider endpoint %s rejected: %w", endpoint, err)
		}
	}
	return guard.NewSafeClient(cfg.ProviderTimeout), nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

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
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
