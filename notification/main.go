package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"food-delivery/tracking/config"
	"food-delivery/tracking/models"
)

type sender struct {
	ses  *sesv2.Client
	from string
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal("Failed to load AWS config:", err)
	}
	snd := &sender{
		ses:  sesv2.NewFromConfig(awsCfg),
		from: cfg.Notification.FromAddress,
	}

	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("Failed to open channel:", err)
	}
	defer ch.Close()

	queue, err := ch.QueueDeclare(cfg.RabbitMQ.NotificationQueue, true, false, false, false, nil)
	if err != nil {
		log.Fatal("Failed to declare queue:", err)
	}

	msgs, err := ch.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		log.Fatal("Failed to register consumer:", err)
	}

	go func() {
		for d := range msgs {
			var n models.Notification
			if err := json.Unmarshal(d.Body, &n); err != nil {
				log.Printf("Failed to parse notification: %v", err)
				continue
			}
			if err := snd.send(context.Background(), n); err != nil {
				log.Printf("Failed to send notification %s: %v", n.ID, err)
				continue
			}
			log.Printf("Sent notification %s to %s", n.ID, n.To)
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	})

	app.Use(logger.New())

	// @Summary Queue a notification for delivery
	// @Tags Notification
	// @Accept json
	// @Produce json
	// @Success 202 {object} map[string]string
	// @Router /notification/send [post]
	app.Post("/notification/send", func(c *fiber.Ctx) error {
		var n models.Notification
		if err := c.BodyParser(&n); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid notification body")
		}
		if n.To == "" || n.Subject == "" {
			return fiber.NewError(fiber.StatusBadRequest, "to and subject are required")
		}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}

		body, err := json.Marshal(n)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to encode notification")
		}

		err = ch.Publish("", queue.Name, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to queue notification")
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": n.ID, "status": "queued"})
	})

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "notification",
		})
	})

	port := ":5005"
	log.Printf("Notification service starting on %s", port)
	if err := app.Listen(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func (s *sender) send(ctx context.Context, n models.Notification) error {
	body := &sestypes.Body{}
	if n.Text != "" {
		body.Text = &sestypes.Content{Data: aws.String(n.Text)}
	}
	if n.HTML != "" {
		body.Html = &sestypes.Content{Data: aws.String(n.HTML)}
	}

	_, err := s.ses.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(n.Subject)},
				Body:    body,
			},
		},
	})
	return err
}
