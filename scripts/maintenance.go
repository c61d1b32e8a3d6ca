// 手动执行维护任务
//
// 过期扫描已集成到主应用的定时任务中，此脚本用于首次部署、导入旧数据后修复关联，
// 或创建首个管理员账号。
//
// 用法:
//
//	go run scripts/maintenance.go -reconcile
//	go run scripts/maintenance.go -expire
//	go run scripts/maintenance.go -admin admin@example.com -password 'secret'

package main

import (
	"flag"
	"log"

	"github.com/musama5293/NPI-Portal-sub001/internal/config"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/internal/repository"
	"github.com/musama5293/NPI-Portal-sub001/internal/service"
	"github.com/musama5293/NPI-Portal-sub001/pkg/database"
	"github.com/musama5293/NPI-Portal-sub001/pkg/logger"
)

func main() {
	reconcile := flag.Bool("reconcile", false, "修复反馈表与候选人测评的双向关联")
	expire := flag.Bool("expire", false, "立即执行一次过期扫描")
	adminEmail := flag.String("admin", "", "创建管理员账号的邮箱")
	adminPassword := flag.String("password", "", "管理员密码")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, true)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	assignmentRepo := repository.NewAssignmentRepository(db)

	if *adminEmail != "" {
		if len(*adminPassword) < 8 {
			log.Fatalf("管理员密码至少 8 位")
		}
		hash, err := service.HashPassword(*adminPassword)
		if err != nil {
			log.Fatalf("密码加密失败: %v", err)
		}
		user := &model.User{
			Name:     "Administrator",
			Email:    *adminEmail,
			Password: hash,
			Role:     model.RoleAdmin,
		}
		if err := repository.NewUserRepository(db).Create(user); err != nil {
			log.Fatalf("创建管理员失败: %v", err)
		}
		log.Printf("管理员已创建: id=%d email=%s", user.ID, user.Email)
	}

	if *reconcile {
		result, err := service.NewLinkedService(assignmentRepo).ReconcileLinks()
		if err != nil {
			log.Fatalf("修复关联失败: %v", err)
		}
		log.Printf("关联修复完成: 新增 %d, 删除 %d, 回填 %d",
			result.LinksCreated, result.LinksRemoved, result.BackReferencesSet)
	}

	if *expire {
		n, err := service.NewExpiryService(assignmentRepo).Sweep()
		if err != nil {
			log.Fatalf("过期扫描失败: %v", err)
		}
		log.Printf("过期扫描完成: %d 条测评已标记为 expired", n)
	}
}
