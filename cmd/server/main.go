// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"log"

	"github.com/Corphon/PersonaMarket/internal/app"
	"github.com/Corphon/PersonaMarket/internal/config"
)

func main() {
	configFile := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	log.Println("🚀 启动 PersonaMarket 服务器...")

	// 1. 加载配置
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 配置加载完成，端口: %s", cfg.Port)
	if !cfg.GenerativeConfigured() {
		log.Printf("⚠️ 未配置 %s 的 API 密钥，所有文本使用模板生成", cfg.LLMProvider)
	}

	// 2. 初始化服务与路由
	application := app.New(cfg, nil)
	if err := application.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ 初始化失败: %v", err)
	}
	log.Printf("🔗 访问地址: http://localhost:%s/health", cfg.Port)

	// 3. 运行直到收到中断信号
	if err := application.Run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("✅ 服务器优雅关闭完成")
}
