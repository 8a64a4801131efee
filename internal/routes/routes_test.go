package routes

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/congo-pay/timelock/internal/auth"
	"github.com/congo-pay/timelock/internal/config"
	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/logging"
	"github.com/congo-pay/timelock/internal/reserve"
)

type client struct {
	t    *testing.T
	app  *fiber.App
	clk  *clock.Mock
	id   identity.Identity
	priv ed25519.PrivateKey
}

func newClient(t *testing.T) *client {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))

	cfg := config.Config{
		AppName:          "test",
		AppEnv:           "test",
		Namespace:        identity.Namespace{9, 9, 9},
		Rent:             reserve.DefaultSchedule(),
		SignatureMaxSkew: 30 * time.Second,
		FaucetEnabled:    true,
		FaucetMaxAmount:  10_000_000,
	}
	app := fiber.New()
	_, err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard(), Clock: clk})
	require.NoError(t, err)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	id, err := identity.FromPublicKey(pub)
	require.NoError(t, err)
	return &client{t: t, app: app, clk: clk, id: id, priv: priv}
}

func (c *client) signed(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(c.t, err)
	}
	ts := c.clk.Now().Unix()
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(auth.HeaderIdentity, c.id.String())
	req.Header.Set(auth.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(auth.HeaderSignature, auth.Sign(c.priv, auth.Request{Method: method, Path: path, Timestamp: ts, Body: raw}))
	return c.send(req)
}

func (c *client) send(req *http.Request) (int, map[string]any) {
	c.t.Helper()
	resp, err := c.app.Test(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(c.t, json.Unmarshal(payload, &out))
	}
	return resp.StatusCode, out
}

func TestFaucetThenWalletFlow(t *testing.T) {
	c := newClient(t)
	reserveAmount := reserve.DefaultSchedule().MinimumBalance(49)

	status, body := c.signed(fiber.MethodPost, "/api/v1/faucet", map[string]any{"amount": 5_000_000})
	require.Equal(t, http.StatusCreated, status)
	require.EqualValues(t, 5_000_000, body["balance"])

	status, _ = c.signed(fiber.MethodPost, "/api/v1/wallets/"+c.id.String(), map[string]any{"release_time": c.clk.Now().Unix() + 60})
	require.Equal(t, http.StatusCreated, status)

	status, body = c.send(httptest.NewRequest(fiber.MethodGet, "/api/v1/accounts/"+c.id.String()+"/balance", nil))
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 5_000_000-reserveAmount, body["balance"])

	status, body = c.signed(fiber.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, c.id.String(), body["identity"])

	status, body = c.send(httptest.NewRequest(fiber.MethodGet, "/api/v1/wallets/"+c.id.String(), nil))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, body["address"], c.mustMe()["wallet_address"])
	require.Equal(t, false, body["released"])
}

func (c *client) mustMe() map[string]any {
	c.clk.Add(time.Second)
	status, body := c.signed(fiber.MethodGet, "/api/v1/me", nil)
	require.Equal(c.t, http.StatusOK, status)
	return body
}

func TestFaucetRejectsOversizedAirdrop(t *testing.T) {
	c := newClient(t)
	status, _ := c.signed(fiber.MethodPost, "/api/v1/faucet", map[string]any{"amount": 10_000_001})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	c := newClient(t)

	status, body := c.send(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]any{"postgres": "memory", "redis": "disabled"}, body["status"])

	resp, err := c.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(payload), "timelock_http_requests_total")
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	_, err := Setup(fiber.New(), Deps{Cfg: config.Config{AppEnv: "production"}, Logger: logging.Discard()})
	require.Error(t, err)
}

func TestSignedRequestsInSequenceAreAccepted(t *testing.T) {
	for i := 0; i < 5; i++ {
		c := newClient(t)

		status, _ := c.signed(fiber.MethodPost, "/api/v1/faucet", map[string]any{"amount": 1_000})
		require.Equal(t, http.StatusCreated, status, "client %d faucet", i)

		status, body := c.signed(fiber.MethodGet, "/api/v1/me", nil)
		require.Equal(t, http.StatusOK, status, "client %d me", i)
		require.Equal(t, c.id.String(), body["identity"])
	}
}
