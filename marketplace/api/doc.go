// Package api monta o router HTTP da RoomLink: gate de rate limit na frente,
// autenticação bearer nas rotas protegidas e os handlers de auth, anúncios e upload.
package api
