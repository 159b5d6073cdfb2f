package main

import (
	"fmt"
	"os"

	"github.com/Tuanzi-bug/TuanRedis/redis/config"
	"github.com/Tuanzi-bug/TuanRedis/redis/server"
	"github.com/Tuanzi-bug/TuanRedis/tcp"
	"github.com/hdt3213/godis/lib/logger"
)

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func main() {
	// 从环境变量中获取配置文件路径
	configFilename := os.Getenv("CONFIG")
	if configFilename == "" {
		if fileExists("redis.conf") {
			config.SetupConfig("redis.conf")
		}
	} else {
		config.SetupConfig(configFilename)
	}
	if err := config.ParseFlags(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if config.Properties.LogDir != "" {
		logger.Setup(&logger.Settings{
			Path:       config.Properties.LogDir,
			Name:       "tuanredis",
			Ext:        "log",
			TimeFormat: "2006-01-02",
		})
	}
	err := tcp.ListenAndServeWithSignal(&tcp.Config{
		Address:    fmt.Sprintf("%s:%d", config.Properties.Bind, config.Properties.Port),
		MaxConnect: uint32(config.Properties.MaxClients),
	}, server.MakeHandler())
	if err != nil {
		logger.Error(err)
	}
}
