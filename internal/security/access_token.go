// Package security はアプリケーションのセキュリティ機能を提供する。
//
// アクセストークンの生成と契約書コンテンツのサニタイズを担う。
// アクセストークンは受信者がログインなしで契約書を閲覧・署名するための
// 唯一の認証情報であり、推測・列挙が事実上不可能なエントロピーを持つ。
package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// accessTokenBytes はアクセストークンの乱数バイト長。
// 256ビットのエントロピーをURLセーフなbase64で43文字にエンコードする。
const accessTokenBytes = 32

// GenerateAccessToken は署名リンク用のアクセストークンを生成する。
// crypto/randを使用し、パディングなしのURLセーフbase64でエンコードする。
func GenerateAccessToken() (string, error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("アクセストークンの生成に失敗しました: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateSessionID はログインセッションIDを生成する。
// アクセストークンと同じ強度の乱数を使用する。
func GenerateSessionID() (string, error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("セッションIDの生成に失敗しました: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
