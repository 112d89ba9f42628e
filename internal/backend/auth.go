package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/datapulse-console/internal/model"
)

const (
	pathSendMagicLink = "/api/user/send-magic-link"
	pathSignUp        = "/api/user/signup"
	pathSignOut       = "/api/user/signout"
)

// SendMagicLink はメールアドレス宛てのマジックリンク送信を依頼する。
func (c *Client) SendMagicLink(ctx context.Context, email string) error {
	_, err := call[json.RawMessage](ctx, c, request{
		method: http.MethodPost,
		path:   pathSendMagicLink,
		body:   map[string]string{"email": email},
	})
	return err
}

// SignUp はユーザーと組織を登録し、マジックリンクを送信させる。
func (c *Client) SignUp(ctx context.Context, req model.SignUpRequest) error {
	_, err := call[json.RawMessage](ctx, c, request{
		method: http.MethodPost,
		path:   pathSignUp,
		body:   req,
	})
	return err
}

// SignOut はバックエンド側のサインアウトを通知する。
// 呼び出し元は失敗を無視してローカルのセッションを破棄する。
func (c *Client) SignOut(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodPost, path: pathSignOut}, nil)
	return err
}
