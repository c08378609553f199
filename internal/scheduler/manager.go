package scheduler

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/muse0509/axis-settlement/internal/config"
	"github.com/muse0509/axis-settlement/internal/logger"
	solclient "github.com/muse0509/axis-settlement/internal/solana"
	"github.com/muse0509/axis-settlement/internal/store"
	"github.com/muse0509/axis-settlement/internal/task"
)

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	store     store.Store
	client    *solclient.Client
	config    *config.Config
}

// NewManager 创建新的任务管理器
func NewManager(st store.Store, client *solclient.Client, cfg *config.Config) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler: s,
		store:     st,
		client:    client,
		config:    cfg,
	}
}

// Start 启动任务管理器
func Start(st store.Store, client *solclient.Client, cfg *config.Config) *Manager {
	manager := NewManager(st, client, cfg)

	// 注册所有任务
	manager.RegisterJobs()

	// 启动调度器
	manager.scheduler.Start()

	logger.Info("Task manager started successfully")
	return manager
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	// 注册 pending 对账任务
	m.RegisterPendingReconcileJob()
}

// RegisterPendingReconcileJob 注册 pending 对账任务
func (m *Manager) RegisterPendingReconcileJob() {
	job, err := task.NewPendingReconcileJob(m.store, m.client, m.config)
	if err != nil {
		logger.Error("Failed to create reconcile job: %v", err)
		return
	}

	_, err = m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
