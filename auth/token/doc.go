// Package token implementa o CredentialIssuer: bearer tokens sem estado no servidor,
// assinados com HMAC-SHA256 e com validade fixa (DefaultTTL, configurável).
//
// Um token contém sub (identidade), iat, exp e jti. É válido enquanto a assinatura
// confere com o segredo atual e agora < exp. Não há revogação.
package token
