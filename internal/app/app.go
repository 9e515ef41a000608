// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
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

	"github.com/hitoshi/orbit/internal/cache"
	"github.com/hitoshi/orbit/internal/config"
	"github.com/hitoshi/orbit/internal/database"
	"github.com/hitoshi/orbit/internal/handler"
	"github.com/hitoshi/orbit/internal/logger"
	"github.com/hitoshi/orbit/internal/metrics"
	"github.com/hitoshi/orbit/internal/remote"
	"github.com/hitoshi/orbit/internal/repository"
	"github.com/hitoshi/orbit/internal/security"
	syncworker "github.com/hitoshi/orbit/internal/worker/sync"
)

// enqueueFunc は関数をSyncRequesterとして使うためのアダプタ。
type enqueueFunc func()

func (f enqueueFunc) Enqueue() { f() }

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
		slog.String("database_path", cfg.DatabasePath),
		slog.String("remote_base_url", cfg.RemoteBaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandSync:
		return runSync(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openStore はマイグレーション適用済みのローカルストアを開く。
func openStore(cfg *config.Config) (*sql.DB, error) {
	if err := database.RunMigrations(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// newRemoteClient はリモートAPIクライアントを構築する。
func newRemoteClient(cfg *config.Config, collector remote.LatencyRecorder) *remote.Client {
	return remote.NewClient(
		&http.Client{Timeout: cfg.RemoteTimeout},
		cfg.RemoteBaseURL,
		rate.NewLimiter(rate.Limit(cfg.RemoteRateLimit), cfg.RemoteRateBurst),
		security.NewTextSanitizer(),
		slog.Default(),
		collector,
	)
}

// runServe はキャッシュデーモンモードで起動する。
// ローカルストアを開き、コーディネーターと同期スケジューラを起動し、
// レンダリング層向けHTTPサーバーを立てる。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ローカルストア
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("local store opened")

	repo := repository.NewSQLiteArticleRepo(db)

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リモートクライアント
	client := newRemoteClient(cfg, collector)

	// 4. コーディネーターと同期スケジューラ
	// スケジューラはコーディネーターを包むジョブを回し、コーディネーターは
	// スケジューラへ再同期を依頼する。相互参照は依頼側を関数で遅延させて解く。
	var scheduler *syncworker.Scheduler
	coordinator := cache.NewCoordinator(
		repo, client,
		enqueueFunc(func() { scheduler.Enqueue() }),
		cache.NewPublishedView(),
		slog.Default(), collector,
	)
	job := syncworker.NewJob(coordinator, slog.Default())
	scheduler = syncworker.NewScheduler(job, slog.Default(), cfg.SyncBackoff, cfg.SyncBackoffMax)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Start(ctx)
	coordinator.Start(ctx)
	defer coordinator.Stop()

	// 前回終了時に残ったdirty行があれば同期を仕掛けておく
	if dirty, err := repo.ListDirty(ctx); err == nil && len(dirty) > 0 {
		slog.Info("未同期のブックマーク変更が残っています。同期を依頼します",
			slog.Int("dirty_count", len(dirty)),
		)
		scheduler.Enqueue()
	}

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		CacheService:      coordinator,
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Gatherer:          registry,
	})

	// 6. HTTPサーバーの起動
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runSync はdirty同期ジョブを1回だけ実行する。
// cronなど外部のジョブランナーから呼ぶためのモード。エラー終了は
// 「バックオフ後に再実行してほしい」の意味になる。
func runSync(cfg *config.Config) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewSQLiteArticleRepo(db)
	client := newRemoteClient(cfg, nil)

	coordinator := cache.NewCoordinator(
		repo, client,
		enqueueFunc(func() {}), // 再実行は終了コードで外部ランナーに委ねる
		cache.NewPublishedView(),
		slog.Default(), nil,
	)

	job := syncworker.NewJob(coordinator, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RemoteTimeout*10)
	defer cancel()

	return job.Run(ctx)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_path", cfg.DatabasePath),
	)

	if err := database.RunMigrations(cfg.DatabasePath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
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
