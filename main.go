package main

import (
	"context"
	"fmt"

	"raffle-service/config"
	"raffle-service/controller"
	"raffle-service/routes"
	"raffle-service/service"
	"raffle-service/utils"

	"github.com/spf13/viper"
)

func main() {
	utils.InitializeViper("config", "yml")
	config.InitializeConfig()
	config.ConnectDb()
	defer config.DB.Close()
	utils.LogStore = config.Redis

	verifier := service.NewVerifier(service.LoadVerifierConfig())
	notifier := service.NewRedisNotifier(config.Redis, viper.GetString("notifier.channel"))
	controller.Setup(verifier, notifier)

	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go service.StartHoldSweeper(sweeperCtx, config.DB, config.SweepInterval)

	port := viper.GetString("port")
	if port == "" {
		port = "9000"
	}
	fmt.Println("Hello - " + config.ServiceName + ": " + port)
	server := routes.InitRoutes()
	server.Listen("0.0.0.0:" + port)
}
