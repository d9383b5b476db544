// Package clients holds the HTTP clients for the peer services the
// tracking server talks to: orders, users, delivery and notifications.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"food-delivery/tracking/geo"
	"food-delivery/tracking/models"
)

const requestTimeout = 10 * time.Second

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func doJSON(ctx context.Context, client httpDoer, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s request: %w", method, url, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building %s %s request: %w", method, url, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s returned status %d", method, url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, url, err)
	}
	return nil
}

// OrderClient talks to the order service.
type OrderClient struct {
	baseURL string
	client  httpDoer
}

func NewOrderClient(baseURL string) *OrderClient {
	return &OrderClient{baseURL: baseURL, client: newHTTPClient()}
}

// Order fetches a single order by id.
func (c *OrderClient) Order(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	url := fmt.Sprintf("%s/order/%s", c.baseURL, id)
	if err := doJSON(ctx, c.client, http.MethodGet, url, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Nearby lists unassigned orders around a point.
func (c *OrderClient) Nearby(ctx context.Context, point geo.Coordinate) ([]models.Order, error) {
	var orders []models.Order
	url := fmt.Sprintf("%s/order/nearby?lat=%s&lng=%s",
		c.baseURL,
		strconv.FormatFloat(point.Lat(), 'f', -1, 64),
		strconv.FormatFloat(point.Lng(), 'f', -1, 64))
	if err := doJSON(ctx, c.client, http.MethodGet, url, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Assign claims an order through the order service. This is the fallback
// path when the delivery service assignment is unavailable.
func (c *OrderClient) Assign(ctx context.Context, req models.AssignmentRequest) error {
	url := fmt.Sprintf("%s/order/assign", c.baseURL)
	return doJSON(ctx, c.client, http.MethodPost, url, req, nil)
}

// UserClient talks to the user service for restaurant and customer
// profiles.
type UserClient struct {
	baseURL string
	client  httpDoer
}

func NewUserClient(baseURL string) *UserClient {
	return &UserClient{baseURL: baseURL, client: newHTTPClient()}
}

func (c *UserClient) Restaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	url := fmt.Sprintf("%s/restaurant/%s", c.baseURL, id)
	if err := doJSON(ctx, c.client, http.MethodGet, url, nil, &restaurant); err != nil {
		return nil, err
	}
	return &restaurant, nil
}

func (c *UserClient) Customer(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	url := fmt.Sprintf("%s/customer/%s", c.baseURL, id)
	if err := doJSON(ctx, c.client, http.MethodGet, url, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// DeliveryClient talks to the delivery service.
type DeliveryClient struct {
	baseURL string
	client  httpDoer
}

func NewDeliveryClient(baseURL string) *DeliveryClient {
	return &DeliveryClient{baseURL: baseURL, client: newHTTPClient()}
}

func (c *DeliveryClient) DeliveryPerson(ctx context.Context, id string) (*models.DeliveryPerson, error) {
	var person models.DeliveryPerson
	url := fmt.Sprintf("%s/delivery/deliveryPerson/%s", c.baseURL, id)
	if err := doJSON(ctx, c.client, http.MethodGet, url, nil, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

// Assign claims an order for a courier. The service answers 409 when
// someone else got there first.
func (c *DeliveryClient) Assign(ctx context.Context, req models.AssignmentRequest) error {
	url := fmt.Sprintf("%s/delivery/assign", c.baseURL)
	return doJSON(ctx, c.client, http.MethodPost, url, req, nil)
}

// UpdateStatus advances an assigned order to the next delivery status.
func (c *DeliveryClient) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	url := fmt.Sprintf("%s/delivery/%s/status", c.baseURL, orderID)
	return doJSON(ctx, c.client, http.MethodPut, url, models.StatusUpdateRequest{Status: status}, nil)
}

// NotificationClient submits outbound notifications.
type NotificationClient struct {
	baseURL string
	client  httpDoer
}

func NewNotificationClient(baseURL string) *NotificationClient {
	return &NotificationClient{baseURL: baseURL, client: newHTTPClient()}
}

func (c *NotificationClient) Send(ctx context.Context, n models.Notification) error {
	url := fmt.Sprintf("%s/notification/send", c.baseURL)
	return doJSON(ctx, c.client, http.MethodPost, url, n, nil)
}
