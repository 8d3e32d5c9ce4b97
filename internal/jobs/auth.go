package jobs

import (
	"context"

	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid token")

// Authenticator checks the token a client presented in its hello. The
// result only marks the client as verified and never gates simulation input.
type Authenticator interface {
	Verify(ctx context.Context, nickname, token string) error
}

// TokenList accepts a fixed set of tokens. An empty list accepts everyone.
type TokenList map[string]struct{}

func NewTokenList(tokens ...string) TokenList {
	l := make(TokenList, len(tokens))
	for _, t := range tokens {
		if t != "" {
			l[t] = struct{}{}
		}
	}
	return l
}

func (l TokenList) Verify(_ context.Context, nickname, token string) error {
	if len(l) == 0 {
		return nil
	}
	if _, ok := l[token]; !ok {
		return errors.Wrapf(ErrInvalidToken, "player %q", nickname)
	}
	return nil
}
