package config

import (
	"github.com/muse0509/axis-settlement/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Solana   SolanaConfig   `mapstructure:"solana"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// WebhookConfig webhook 接入配置
type WebhookConfig struct {
	Secret string `mapstructure:"secret"` // 共享密钥，Authorization 头需完全匹配
}

// SolanaConfig 链端配置
type SolanaConfig struct {
	RpcURL          string `mapstructure:"rpc_url"`           // RPC节点URL
	TreasurySecret  string `mapstructure:"treasury_secret"`   // 金库私钥（base58）
	UsdcMint        string `mapstructure:"usdc_mint"`         // USDC mint 地址
	IndexMint       string `mapstructure:"index_mint"`        // 指数代币 mint 地址
	UsdcDecimals    uint8  `mapstructure:"usdc_decimals"`     // USDC 精度
	IndexDecimals   uint8  `mapstructure:"index_decimals"`    // 指数代币精度
	PriorityFee     uint64 `mapstructure:"priority_fee"`      // 优先级费用（microlamports/CU）
	MaxPriorityFee  uint64 `mapstructure:"max_priority_fee"`  // 优先级费用上限
	ComputeUnitCap  uint32 `mapstructure:"compute_unit_cap"`  // 计算单元限制
	ConfirmTimeout  int    `mapstructure:"confirm_timeout"`   // 确认等待超时（秒）
	ConfirmInterval int    `mapstructure:"confirm_interval"`  // 确认轮询间隔（秒）
}

// OracleConfig 价格预言机配置
type OracleConfig struct {
	Endpoint string       `mapstructure:"endpoint"` // 批量行情查询端点
	Timeout  int          `mapstructure:"timeout"`  // 请求超时（秒）
	Basket   BasketConfig `mapstructure:"basket"`   // 指数篮子
}

// BasketConfig 带版本的篮子快照，重新定基只改配置不改代码
type BasketConfig struct {
	Version       string        `mapstructure:"version"`        // 篮子版本号
	EffectiveDate string        `mapstructure:"effective_date"` // 生效日期
	Assets        []BasketAsset `mapstructure:"assets"`         // 有序资产列表
}

// BasketAsset 篮子中的单个资产
type BasketAsset struct {
	Symbol        string  `mapstructure:"symbol"`         // 资产符号
	FeedID        string  `mapstructure:"feed_id"`        // 预言机 feed id
	BaselinePrice float64 `mapstructure:"baseline_price"` // 定基价格
}

type TaskConfig struct {
	Interval   int `mapstructure:"interval"`    // 对账任务间隔（秒）
	PendingAge int `mapstructure:"pending_age"` // pending 记录对账年龄阈值（秒）
	Workers    int `mapstructure:"workers"`     // 对账协程池大小
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/axis")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "axis_settlement")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("solana.usdc_decimals", 6)
	viper.SetDefault("solana.index_decimals", 6)
	viper.SetDefault("solana.priority_fee", 5000)
	viper.SetDefault("solana.max_priority_fee", 50000)
	viper.SetDefault("solana.compute_unit_cap", 200000)
	viper.SetDefault("solana.confirm_timeout", 60)
	viper.SetDefault("solana.confirm_interval", 2)
	viper.SetDefault("oracle.endpoint", "https://hermes.pyth.network/v2/updates/price/latest")
	viper.SetDefault("oracle.timeout", 10)
	viper.SetDefault("task.interval", 60)
	viper.SetDefault("task.pending_age", 300)
	viper.SetDefault("task.workers", 8)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
