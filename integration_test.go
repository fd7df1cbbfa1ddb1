package main

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"payment-transactions/internal/config"
	"payment-transactions/internal/server"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type IntegrationTestSuite struct {
	suite.Suite
	postgresContainer testcontainers.Container
	redisContainer    testcontainers.Container
	serverInstance    *server.Server
	serverPort        string
	baseURL           string
	client            *http.Client
	dbConnStr         string
	redisAddr         string
}

func (suite *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	postgresReq := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "payment_transactions",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: postgresReq,
		Started:          true,
	})
	if err != nil {
		suite.T().Fatalf("Failed to start postgres container: %s", err)
	}
	suite.postgresContainer = postgresContainer

	redisReq := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: redisReq,
		Started:          true,
	})
	if err != nil {
		suite.T().Fatalf("Failed to start redis container: %s", err)
	}
	suite.redisContainer = redisContainer

	pgHost, err := postgresContainer.Host(ctx)
	if err != nil {
		suite.T().Fatalf("Failed to get postgres host: %s", err)
	}
	pgPort, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		suite.T().Fatalf("Failed to get postgres port: %s", err)
	}

	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		suite.T().Fatalf("Failed to get redis host: %s", err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		suite.T().Fatalf("Failed to get redis port: %s", err)
	}
	suite.redisAddr = fmt.Sprintf("%s:%s", redisHost, redisPort.Port())

	suite.dbConnStr = fmt.Sprintf("host=%s port=%s user=postgres password=password dbname=payment_transactions sslmode=disable",
		pgHost, pgPort.Port())

	if err := suite.runMigrations(); err != nil {
		suite.T().Fatalf("Failed to run migrations: %s", err)
	}

	if err := suite.startApplicationServer(pgHost, pgPort.Port()); err != nil {
		suite.T().Fatalf("Failed to start application server: %s", err)
	}

	suite.client = &http.Client{
		Timeout: 30 * time.Second,
	}
}

func (suite *IntegrationTestSuite) runMigrations() error {
	db, err := sql.Open("postgres", suite.dbConnStr)
	if err != nil {
		return err
	}
	defer db.Close()

	migrationFiles, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	sort.Slice(migrationFiles, func(i, j int) bool {
		return migrationFiles[i].Name() < migrationFiles[j].Name()
	})

	for _, file := range migrationFiles {
		if strings.HasSuffix(file.Name(), ".sql") {
			migrationPath := filepath.Join("migrations", file.Name())
			migrationSQL, err := migrationsFS.ReadFile(migrationPath)
			if err != nil {
				return fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
			}

			if _, err := db.Exec(string(migrationSQL)); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", file.Name(), err)
			}
		}
	}

	return nil
}

func (suite *IntegrationTestSuite) startApplicationServer(dbHost, dbPort string) error {
	cfg := &config.Config{
		DBHost:     dbHost,
		DBPort:     dbPort,
		DBUser:     "postgres",
		DBPassword: "password",
		DBName:     "payment_transactions",
		DBSSLMode:  "disable",
		RedisAddr:  suite.redisAddr,
		ServerPort: "0", // Let OS choose a free port
	}

	serverInstance, port, err := server.StartServer(cfg)
	if err != nil {
		return err
	}

	suite.serverInstance = serverInstance
	suite.serverPort = port
	suite.baseURL = "http://localhost:" + port

	return suite.waitForServerReady()
}

func (suite *IntegrationTestSuite) waitForServerReady() error {
	timeout := 30 * time.Second
	start := time.Now()

	for time.Since(start) < timeout {
		resp, err := http.Get(suite.baseURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %v", timeout)
}

func (suite *IntegrationTestSuite) TearDownSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if suite.serverInstance != nil {
		suite.serverInstance.Stop(ctx)
	}
	if suite.postgresContainer != nil {
		suite.postgresContainer.Terminate(ctx)
	}
	if suite.redisContainer != nil {
		suite.redisContainer.Terminate(ctx)
	}
}

func (suite *IntegrationTestSuite) doJSON(method, path string, body interface{}) (int, map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, suite.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := suite.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	var decoded map[string]interface{}
	if len(respBody) > 0 && respBody[0] == '{' {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return resp.StatusCode, nil, err
		}
	}

	return resp.StatusCode, decoded, nil
}

func paymentBody() map[string]interface{} {
	return map[string]interface{}{
		"card": "4444********1234",
		"description": map[string]interface{}{
			"amount":    "500.50",
			"timestamp": "01/05/2021 18:00:00",
			"merchant":  "PetShop Mundo cão",
		},
		"paymentMethod": map[string]interface{}{
			"type":             "CASH",
			"installmentCount": "1",
		},
	}
}

// TestTransactionLifecycle drives the full pay -> read -> reverse flow over
// HTTP. It is the only test that creates transactions, so the first payment
// gets the first sequence value.
func (suite *IntegrationTestSuite) TestTransactionLifecycle() {
	t := suite.T()

	// Pay
	status, paid, err := suite.doJSON(http.MethodPost, "/transactions/v1/payment", paymentBody())
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, status)

	assert.Equal(t, float64(1), paid["id"])
	assert.Equal(t, "4444********1234", paid["card"])

	description := paid["description"].(map[string]interface{})
	assert.Equal(t, "AUTHORIZED", description["status"])
	assert.Equal(t, "500.50", description["amount"])
	assert.Equal(t, "01/05/2021 18:00:00", description["timestamp"])
	assert.Equal(t, "PetShop Mundo cão", description["merchant"])
	assert.NotEmpty(t, description["nsu"])
	assert.NotEmpty(t, description["authorizationCode"])

	paymentMethod := paid["paymentMethod"].(map[string]interface{})
	assert.Equal(t, "CASH", paymentMethod["type"])
	assert.Equal(t, "1", paymentMethod["installmentCount"])

	// Cache round trip: the lookup must return the payment field for field
	status, found, err := suite.doJSON(http.MethodGet, "/transactions/v1/1", nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, status)
	assert.Equal(t, paid, found)

	// List
	status, _, err = suite.doJSON(http.MethodGet, "/transactions/v1", nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, status)

	// Reverse
	status, reversed, err := suite.doJSON(http.MethodPut, "/transactions/v1/reversal/1", nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, status)

	reversedDescription := reversed["description"].(map[string]interface{})
	assert.Equal(t, "DENIED", reversedDescription["status"])
	assert.Equal(t, description["amount"], reversedDescription["amount"])
	assert.Equal(t, description["nsu"], reversedDescription["nsu"])
	assert.Equal(t, description["authorizationCode"], reversedDescription["authorizationCode"])

	// The denial is visible on subsequent lookups
	status, found, err = suite.doJSON(http.MethodGet, "/transactions/v1/1", nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, status)
	assert.Equal(t, "DENIED", found["description"].(map[string]interface{})["status"])

	// A denied transaction cannot be reversed again
	status, errBody, err := suite.doJSON(http.MethodPut, "/transactions/v1/reversal/1", nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusBadRequest, status)
	assert.Equal(t, "reversal_not_allowed", errBody["error"].(map[string]interface{})["code"])
}

func (suite *IntegrationTestSuite) TestPaymentValidation() {
	t := suite.T()

	// Store-assigned fields must not be submitted
	body := paymentBody()
	body["description"].(map[string]interface{})["nsu"] = "1234567890"

	status, errBody, err := suite.doJSON(http.MethodPost, "/transactions/v1/payment", body)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusBadRequest, status)
	assert.Equal(t, "insertion_not_allowed", errBody["error"].(map[string]interface{})["code"])

	// Required fields must be present
	body = paymentBody()
	delete(body, "card")

	status, errBody, err = suite.doJSON(http.MethodPost, "/transactions/v1/payment", body)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", errBody["error"].(map[string]interface{})["code"])
}

func (suite *IntegrationTestSuite) TestUnknownTransaction() {
	t := suite.T()

	status, errBody, err := suite.doJSON(http.MethodGet, "/transactions/v1/999999", nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusNotFound, status)
	assert.Equal(t, "transaction(s) not found", errBody["error"].(map[string]interface{})["message"])

	status, _, err = suite.doJSON(http.MethodPut, "/transactions/v1/reversal/999999", nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusNotFound, status)
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(IntegrationTestSuite))
}
