package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Config do simulador, lida do ambiente
type Config struct {
	APIURL       string
	Barcodes     []string
	ScanCount    int
	ScanInterval time.Duration
	Mode         string
	ModeQuantity int
	HTTPRetries  int
}

// ScanPayload é o corpo enviado ao endpoint de scan
type ScanPayload struct {
	Barcode   string `json:"barcode"`
	RequestID string `json:"requestId"`
}

// ScanResponse espelha a resposta do endpoint de scan
type ScanResponse struct {
	Success             bool   `json:"success"`
	Action              string `json:"action"`
	Mode                string `json:"mode"`
	Name                string `json:"name"`
	Category            string `json:"category"`
	NewStock            int    `json:"newStock"`
	QuantityChanged     int    `json:"quantityChanged"`
	WasPartialDeduction bool   `json:"wasPartialDeduction"`
	StockHealth         string `json:"stockHealth"`
	TransactionID       string `json:"transactionId"`
	Message             string `json:"message"`
	Error               string `json:"error"`
}

// ScannerModePayload é o corpo do PUT de modo
type ScannerModePayload struct {
	Mode     string `json:"mode"`
	Quantity int    `json:"quantity"`
}

// ErrItemNotFound é retornado quando o código não está cadastrado
var ErrItemNotFound = errors.New("item not found")

// Simulator faz o papel do leitor físico
type Simulator struct {
	client  *resty.Client
	baseURL string
}

// NewSimulator cria o simulador; retentativas só acontecem em erro de rede ou 5xx
func NewSimulator(baseURL string, retries int, timeout time.Duration) *Simulator {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Simulator{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SetMode troca o modo global do scanner
func (s *Simulator) SetMode(ctx context.Context, mode string, quantity int) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(ScannerModePayload{Mode: mode, Quantity: quantity}).
		SetError(&apiErr).
		Put(s.baseURL + "/api/scanner-mode")
	if err != nil {
		return fmt.Errorf("failed to set scanner mode: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to set scanner mode: status %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return nil
}

// Scan envia um evento de scan. O mesmo requestId é reenviado em todas as
// retentativas, então o servidor aplica a mutação uma única vez.
func (s *Simulator) Scan(ctx context.Context, barcode string) (*ScanResponse, error) {
	payload := ScanPayload{
		Barcode:   barcode,
		RequestID: uuid.New().String(),
	}

	var result ScanResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post(s.baseURL + "/api/scan")
	if err != nil {
		return nil, fmt.Errorf("scan %s failed: %w", barcode, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return &result, fmt.Errorf("%w: %s", ErrItemNotFound, barcode)
	case resp.IsError():
		return &result, fmt.Errorf("scan %s failed: status %d: %s", barcode, resp.StatusCode(), result.Error)
	}
	return &result, nil
}

// Run dispara cfg.ScanCount scans percorrendo os códigos em round-robin
func (s *Simulator) Run(ctx context.Context, cfg Config) error {
	if cfg.Mode != "" {
		if err := s.SetMode(ctx, cfg.Mode, cfg.ModeQuantity); err != nil {
			return err
		}
		log.Printf("⚙️ [MODE] Scanner set to %s (quantity=%d)", cfg.Mode, cfg.ModeQuantity)
	}

	for i := 0; i < cfg.ScanCount; i++ {
		barcode := cfg.Barcodes[i%len(cfg.Barcodes)]

		result, err := s.Scan(ctx, barcode)
		switch {
		case errors.Is(err, ErrItemNotFound):
			log.Printf("❓ [SCAN] %s not registered", barcode)
		case err != nil:
			log.Printf("❌ [SCAN] %v", err)
		case !result.Success:
			log.Printf("⚠️ [SCAN] %s: %s", barcode, result.Message)
		case result.WasPartialDeduction:
			log.Printf("✂️ [SCAN] %s %s %d (partial) -> stock %d [%s]", result.Name, result.Action, result.QuantityChanged, result.NewStock, result.StockHealth)
		default:
			log.Printf("✅ [SCAN] %s %s %d -> stock %d [%s]", result.Name, result.Action, result.QuantityChanged, result.NewStock, result.StockHealth)
		}

		if i < cfg.ScanCount-1 && cfg.ScanInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.ScanInterval):
			}
		}
	}
	return nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := NewSimulator(cfg.APIURL, cfg.HTTPRetries, 10*time.Second)

	log.Printf("🚀 Scanner simulator sending %d scans to %s", cfg.ScanCount, cfg.APIURL)
	if err := sim.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Simulator failed: %v", err)
	}
	log.Println("🏁 Simulator finished")
}

func loadConfig() (Config, error) {
	cfg := Config{
		APIURL:       getEnv("API_URL", "http://localhost:8080"),
		Mode:         strings.ToUpper(getEnv("SCANNER_MODE", "")),
		ModeQuantity: getEnvInt("MODE_QUANTITY", 1),
		ScanCount:    getEnvInt("SCAN_COUNT", 10),
		HTTPRetries:  getEnvInt("HTTP_RETRIES", 3),
	}

	for _, b := range strings.Split(getEnv("BARCODES", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.Barcodes = append(cfg.Barcodes, b)
		}
	}
	if len(cfg.Barcodes) == 0 {
		return cfg, fmt.Errorf("BARCODES is required")
	}

	interval, err := time.ParseDuration(getEnv("SCAN_INTERVAL", "1s"))
	if err != nil {
		return cfg, fmt.Errorf("invalid SCAN_INTERVAL: %w", err)
	}
	cfg.ScanInterval = interval

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
