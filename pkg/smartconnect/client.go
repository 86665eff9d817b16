// Package smartconnect is a minimal client for the Angel One SmartAPI REST
// endpoints used for historical candles: password+TOTP login, token renewal
// and getCandleData.
//
// Usage example:
//
//	sc := smartconnect.New(smartconnect.Config{APIKey: "your_api_key"})
//	if err := sc.Login(ctx, "CLIENTID", "PASSWORD", totpCode); err != nil { ... }
//	raw, err := sc.GetCandleData(ctx, smartconnect.CandleRequest{
//	    Exchange: "CDS", SymbolToken: "1", Interval: "FIVE_MINUTE", From: from, To: to,
//	})
package smartconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// ErrTokenExpired is returned when the API rejects the session token.
var ErrTokenExpired = errors.New("smartconnect: session token expired")

type Config struct {
	APIKey         string
	RootURL        string        // default: https://apiconnect.angelone.in
	Timeout        time.Duration // default: 7s
	UserType       string        // default: USER
	SourceID       string        // default: WEB
	ClientLocalIP  string        // default resolved, else 127.0.0.1
	ClientPublicIP string        // default 127.0.0.1
	ClientMAC      string        // default from interface MAC
}

type SmartConnect struct {
	apiKey  string
	rootURL string

	httpClient *http.Client

	userType string
	sourceID string

	clientPublicIP string
	clientLocalIP  string
	clientMAC      string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	feedToken    string
}

const defaultRoot = "https://apiconnect.angelone.in"

var routes = map[string]string{
	"api.login":       "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.token":       "/rest/auth/angelbroking/jwt/v1/generateTokens",
	"api.candle.data": "/rest/secure/angelbroking/historical/v1/getCandleData",
}

// GetLocalIP finds the first non-loopback IPv4 address.
func GetLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, address := range addrs {
		if ipNet, ok := address.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no local IP found")
}

func New(cfg Config) *SmartConnect {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.UserType == "" {
		cfg.UserType = "USER"
	}
	if cfg.SourceID == "" {
		cfg.SourceID = "WEB"
	}
	if cfg.ClientLocalIP == "" {
		ip, err := GetLocalIP()
		if err != nil {
			log.Debug().Err(err).Str("component", "smartconnect").Msg("local IP lookup failed")
		}
		cfg.ClientLocalIP = firstNonEmpty(ip, "127.0.0.1")
	}
	if cfg.ClientPublicIP == "" {
		cfg.ClientPublicIP = cfg.ClientLocalIP
	}
	if cfg.ClientMAC == "" {
		cfg.ClientMAC = macAddress()
	}

	return &SmartConnect{
		apiKey:         cfg.APIKey,
		rootURL:        strings.TrimRight(cfg.RootURL, "/"),
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		userType:       cfg.UserType,
		sourceID:       cfg.SourceID,
		clientPublicIP: cfg.ClientPublicIP,
		clientLocalIP:  cfg.ClientLocalIP,
		clientMAC:      cfg.ClientMAC,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func macAddress() string {
	ifs, _ := net.Interfaces()
	for _, ifc := range ifs {
		if len(ifc.HardwareAddr) > 0 {
			return ifc.HardwareAddr.String()
		}
	}
	return "00:11:22:33:44:55"
}

// ---- Helpers ----

func (sc *SmartConnect) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-ClientLocalIP", sc.clientLocalIP)
	h.Set("X-ClientPublicIP", sc.clientPublicIP)
	h.Set("X-MACAddress", sc.clientMAC)
	h.Set("X-PrivateKey", sc.apiKey)
	h.Set("X-UserType", sc.userType)
	h.Set("X-SourceID", sc.sourceID)
	if tok := sc.AccessToken(); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	return h
}

// post sends params as JSON and returns the decoded "data" member.
func (sc *SmartConnect) post(ctx context.Context, route string, params map[string]any) (gjson.Result, error) {
	uri, ok := routes[route]
	if !ok {
		return gjson.Result{}, fmt.Errorf("unknown route: %s", route)
	}
	b, err := json.Marshal(params)
	if err != nil {
		return gjson.Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.rootURL+uri, bytes.NewReader(b))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header = sc.requestHeaders()

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: read body: %w", route, err)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%s: status %d: non-JSON response", route, resp.StatusCode)
	}

	body := gjson.ParseBytes(raw)
	if et := body.Get("error_type").String(); et != "" {
		if resp.StatusCode == http.StatusForbidden && et == "TokenException" {
			return body, ErrTokenExpired
		}
		return body, fmt.Errorf("%s: %s: %s", route, et, body.Get("message").String())
	}
	if st := body.Get("status"); st.Exists() && !st.Bool() {
		code := body.Get("errorcode").String()
		if code == "AG8001" || code == "AG8002" {
			return body, ErrTokenExpired
		}
		return body, fmt.Errorf("%s: status=false errorcode=%s message=%s", route, code, body.Get("message").String())
	}
	return body.Get("data"), nil
}

// ---- Session ----

func (sc *SmartConnect) AccessToken() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.accessToken
}

func (sc *SmartConnect) FeedToken() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.feedToken
}

func (sc *SmartConnect) setTokens(data gjson.Result) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if jwt := data.Get("jwtToken").String(); jwt != "" {
		sc.accessToken = strings.TrimPrefix(jwt, "Bearer ")
	}
	if rt := data.Get("refreshToken").String(); rt != "" {
		sc.refreshToken = rt
	}
	if ft := data.Get("feedToken").String(); ft != "" {
		sc.feedToken = ft
	}
}

// Login opens a session with client code, password and a current TOTP code.
func (sc *SmartConnect) Login(ctx context.Context, clientCode, password, totp string) error {
	data, err := sc.post(ctx, "api.login", map[string]any{
		"clientcode": clientCode,
		"password":   password,
		"totp":       totp,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if data.Get("jwtToken").String() == "" {
		return errors.New("login: response carries no jwtToken")
	}
	sc.setTokens(data)
	log.Info().Str("component", "smartconnect").Str("client", clientCode).Msg("session ready")
	return nil
}

// RenewAccessToken exchanges the refresh token for a new access token.
func (sc *SmartConnect) RenewAccessToken(ctx context.Context) error {
	sc.mu.RLock()
	rt := sc.refreshToken
	sc.mu.RUnlock()
	if rt == "" {
		return ErrTokenExpired
	}
	data, err := sc.post(ctx, "api.token", map[string]any{"refreshToken": rt})
	if err != nil {
		return fmt.Errorf("renew token: %w", err)
	}
	sc.setTokens(data)
	return nil
}

// ---- Market data ----

// CandleRequest selects one historical candle window.
type CandleRequest struct {
	Exchange    string
	SymbolToken string
	Interval    string // ONE_MINUTE, THREE_MINUTE, FIVE_MINUTE, ...
	From, To    time.Time
}

// GetCandleData returns the raw "data" array: rows of
// [timestamp, open, high, low, close, volume], oldest first.
func (sc *SmartConnect) GetCandleData(ctx context.Context, r CandleRequest) (gjson.Result, error) {
	return sc.post(ctx, "api.candle.data", map[string]any{
		"exchange":    r.Exchange,
		"symboltoken": r.SymbolToken,
		"interval":    r.Interval,
		"fromdate":    r.From.Format("2006-01-02 15:04"),
		"todate":      r.To.Format("2006-01-02 15:04"),
	})
}
