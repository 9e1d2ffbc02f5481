package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/urfave/cli.v1"

	"github.com/andrewyi/autoria-crawler/src/server"
)

func main() {
	// .env 可选，其中的值作为环境变量覆盖配置文件
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Println(err)
		os.Exit(1)
	}

	app := cli.NewApp()

	app.Name = "autoria-crawler"
	app.Version = "0.2.0"
	app.Usage = "auto.ria.com 二手车信息抓取"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config,c",
			Usage: "配置文件",
			Value: "./config.yaml",
		},
	}

	s := server.NewServer()
	app.Commands = []cli.Command{
		{
			Name:   "crawl",
			Usage:  "执行一次完整抓取",
			Action: s.Crawl,
		},
		{
			Name:   "export",
			Usage:  "将数据库中的记录导出为json文件",
			Action: s.Export,
		},
		{
			Name:   "schedule",
			Usage:  "按cron表达式定时抓取与导出",
			Action: s.Schedule,
		},
		{
			Name:   "migrate",
			Usage:  "创建或更新数据库表",
			Action: s.Migrate,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
