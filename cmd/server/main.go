package main

import (
	"github.com/gin-gonic/gin"
	"github.com/muse0509/axis-settlement/internal/config"
	"github.com/muse0509/axis-settlement/internal/database"
	"github.com/muse0509/axis-settlement/internal/extractor"
	"github.com/muse0509/axis-settlement/internal/logger"
	"github.com/muse0509/axis-settlement/internal/oracle"
	"github.com/muse0509/axis-settlement/internal/payout"
	"github.com/muse0509/axis-settlement/internal/router"
	"github.com/muse0509/axis-settlement/internal/scheduler"
	solclient "github.com/muse0509/axis-settlement/internal/solana"
	"github.com/muse0509/axis-settlement/internal/store"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	initLogger(cfg)
	defer logger.Sync()

	// 初始化Solana客户端
	sol, err := solclient.Init(cfg.Solana)
	if err != nil {
		logger.Fatal("Failed to initialize solana client: %v", err)
	}

	// 初始化存储：数据库不可用时退回内存存储，保证本地可跑
	var st store.Store
	if db, err := database.Init(cfg.Database); err != nil {
		logger.Warn("Database unavailable, falling back to in-memory store: %v", err)
		st = store.NewMemoryStore()
	} else {
		st = store.NewGormStore(db)
	}

	// 金库代币账户地址用于余额变动回退解析
	treasuryUsdc, err := sol.TreasuryTokenAccount(sol.UsdcMint)
	if err != nil {
		logger.Fatal("Failed to derive treasury USDC account: %v", err)
	}
	treasuryIndex, err := sol.TreasuryTokenAccount(sol.IndexMint)
	if err != nil {
		logger.Fatal("Failed to derive treasury index account: %v", err)
	}

	ex := extractor.New(extractor.Params{
		UsdcMint:             cfg.Solana.UsdcMint,
		IndexMint:            cfg.Solana.IndexMint,
		TreasuryOwner:        sol.TreasuryAddress().String(),
		TreasuryUsdcAccount:  treasuryUsdc.String(),
		TreasuryIndexAccount: treasuryIndex.String(),
	})

	oracleClient := oracle.NewClient(cfg.Oracle)
	executor := payout.NewSolanaExecutor(sol, cfg.Solana)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(st, ex, oracleClient, executor, cfg)

	// 启动定时任务
	mgr := scheduler.Start(st, sol, cfg)
	defer mgr.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

// initLogger 按配置初始化默认日志器
func initLogger(cfg *config.Config) {
	level := logger.ParseLogLevel(cfg.Log.Level)

	var (
		l   *logger.Logger
		err error
	)
	if cfg.Log.Output == "file" {
		l, err = logger.NewWithFileRotation(level, cfg.Log.File)
	} else {
		l, err = logger.New(level)
	}
	if err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	logger.SetDefaultLogger(l)
}
