package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Manual end-to-end exercise against a locally running stack: a courier
// streaming GPS fixes into the location service while a customer watches
// the tracking socket.
func main() {
	checkHealth()

	go simulateCourier()
	trackOrder()

	select {}
}

func simulateCourier() {
	url := "ws://localhost:9000/ws?courier_id=test_courier&token=test_token"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Printf("Courier connection failed: %v\n", err)
		return
	}
	defer c.Close()

	ticker := time.NewTicker(10 * time.Second)
	lat, lng := 6.9271, 79.8612

	for range ticker.C {
		location := map[string]interface{}{
			"courier_id": "test_courier",
			"latitude":   lat,
			"longitude":  lng,
		}
		if err := c.WriteJSON(location); err != nil {
			fmt.Printf("Failed to send location: %v\n", err)
			return
		}

		// Drift towards the customer
		lat -= 0.002
		lng += 0.002
		fmt.Printf("Courier at (%.4f, %.4f)\n", lat, lng)
	}
}

func trackOrder() {
	url := "ws://localhost:8080/track?order_id=test_order"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Printf("Tracking connection failed: %v\n", err)
		return
	}

	go func() {
		defer c.Close()
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				fmt.Printf("Tracking read error: %v\n", err)
				return
			}

			var snapshot map[string]interface{}
			if err := json.Unmarshal(message, &snapshot); err != nil {
				continue
			}
			fmt.Printf("Order %v: status=%v progress=%v%%\n",
				snapshot["orderId"], snapshot["status"], snapshot["progressWidth"])
		}
	}()
}

func checkHealth() {
	for _, url := range []string{
		"http://localhost:8080/health",
		"http://localhost:4000/health",
		"http://localhost:9000/health",
	} {
		resp, err := http.Get(url)
		if err != nil {
			fmt.Printf("%s unreachable: %v\n", url, err)
			continue
		}
		resp.Body.Close()
		fmt.Printf("%s -> %d\n", url, resp.StatusCode)
	}
}
