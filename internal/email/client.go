// Package email は招待メールの送信機能を提供する。
// 外部メール配信APIのクライアントと、API未設定時のログ出力フォールバックを含む。
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

const (
	// defaultEndpoint はメール配信APIの送信エンドポイント。
	defaultEndpoint = "https://api.mailchannel.example.com/v1/send"
	// requestsPerSecond は配信APIへの送信レート上限。
	requestsPerSecond = 10
)

// Client はメール配信APIのクライアント。
// 配信APIのレート制限に合わせて送信を絞る。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	apiKey     string
	from       string
	endpoint   string
}

// NewClient はClient の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey, from string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		apiKey:     apiKey,
		from:       from,
		endpoint:   defaultEndpoint,
	}
}

// SetEndpoint は配信APIのエンドポイントを上書きする。
// 空文字列の場合はデフォルトのエンドポイントを維持する。
func (c *Client) SetEndpoint(url string) {
	if url != "" {
		c.endpoint = url
	}
}

// sendRequest は配信APIへのリクエストボディ。
type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// SendActivation はアカウント有効化リンクを記載した招待メールを送信する。
func (c *Client) SendActivation(ctx context.Context, to, name, link string) error {
	subject := "【ClassHub】アカウント有効化のご案内"
	text := activationBody(name, link)
	return c.send(ctx, to, subject, text)
}

func (c *Client) send(ctx context.Context, to, subject, text string) error {
	// 配信APIのレート制限を超えないよう待機する
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("送信待機が中断されました: %w", err)
	}

	payload, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      to,
		Subject: subject,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("メール配信APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("メール配信APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return fmt.Errorf("メール配信APIがステータス %d を返しました", resp.StatusCode)
	}

	c.logger.Info("招待メールを送信しました", slog.String("to", to))
	return nil
}

func activationBody(name, link string) string {
	if name == "" {
		name = "受講者"
	}
	return fmt.Sprintf(
		"%s 様\n\nClassHubのアカウントが発行されました。\n以下のリンクからパスワードを設定し、アカウントを有効化してください。\n\n%s\n\nリンクの有効期限が切れた場合は、担当の先生に再送を依頼してください。\n",
		name, link,
	)
}

// LogMailer はメールを送信せず、有効化リンクをログに出力する。
// 開発環境などメール配信APIが未設定の場合に使用する。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailer の新しいインスタンスを生成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendActivation は有効化リンクをログに出力する。
func (m *LogMailer) SendActivation(ctx context.Context, to, name, link string) error {
	m.logger.Info("招待メール（送信スキップ）",
		slog.String("to", to),
		slog.String("link", link),
	)
	return nil
}
