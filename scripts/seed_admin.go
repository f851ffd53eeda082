// 创建初始管理员账号脚本
//
// 首次部署后执行一次，之后的用户通过注册接口创建。
//
// 用法: go run scripts/seed_admin.go -email admin@example.com -password <密码>

package main

import (
	"ai_interviewer_backend/internal/config"
	"ai_interviewer_backend/internal/model"
	"ai_interviewer_backend/internal/repository"
	"ai_interviewer_backend/internal/service"
	"ai_interviewer_backend/pkg/database"
	"ai_interviewer_backend/pkg/logger"
	"flag"
	"log"
)

func main() {
	email := flag.String("email", "", "管理员邮箱")
	password := flag.String("password", "", "管理员密码，至少8位")
	name := flag.String("name", "Administrator", "显示名称")
	flag.Parse()

	if *email == "" || len(*password) < 8 {
		log.Fatal("用法: go run scripts/seed_admin.go -email <邮箱> -password <至少8位密码>")
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, true)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	authService := service.NewAuthService(repository.NewUserRepository(db), cfg)
	user := &model.User{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Role:     model.Admin,
	}
	if err := authService.Register(user); err != nil {
		log.Fatalf("创建管理员失败: %v", err)
	}

	log.Printf("管理员创建成功: id=%d email=%s", user.ID, user.Email)
}
