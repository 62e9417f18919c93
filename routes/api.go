package routes

import (
	"time"

	"raffle-service/controller"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func InitRoutes() *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ReadTimeout:  time.Minute * 2,
		WriteTimeout: time.Minute * 2,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With",
		AllowMethods: "*",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1/")
	v1.Get("/", controller.Index)
	v1.All("/service-status", controller.ServiceStatusCheck)
	v1.Get("/health", controller.HealthCheck)
	v1.Get("/logs", controller.GetLogs)

	v1.Post("/raffle", controller.CreateRaffle)
	v1.Get("/raffles", controller.GetRaffles)
	v1.Get("/raffle/:raffleId", controller.GetRaffle)
	v1.Post("/raffle/:raffleId/activate", controller.ActivateRaffle)
	v1.Post("/raffle/:raffleId/finish", controller.FinishRaffle)
	v1.Post("/raffle/:raffleId/postpone", controller.PostponeRaffle)
	v1.Post("/raffle/:raffleId/pool", controller.EnsurePool)
	v1.Post("/raffle/:raffleId/reserve", controller.ReserveTickets)
	v1.Post("/raffle/:raffleId/purchase", controller.CreatePurchase)
	v1.Get("/raffle/:raffleId/purchases", controller.GetRafflePurchases)
	v1.Post("/raffle/:raffleId/draw", controller.DrawWinner)
	v1.Get("/purchase/:purchaseId", controller.GetPurchase)
	v1.Post("/purchase/:purchaseId/decision", controller.DecidePurchase)
	return app
}
