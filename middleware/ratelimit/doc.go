// Package ratelimit fornece adapters HTTP (net/http) para o RateLimitGate e para o
// limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (Gate.Check, Service.Decide, acquire/timeout) sem net/http
//   - infra: implementações concretas (QuotaCache com token bucket, semáforo, estatísticas)
//   - ratelimit (este pacote): middlewares HTTP + extração da origem + tradução para status/headers
//
// Fluxo na API:
//
//  1. Verifica se a rota é protegida (prefixo /api/auth/ ou POST /api/listings); se não, segue
//  2. Monta a chave origem + ":" + path
//  3. Chama a camada application para obter a decisão
//  4. Se bloqueado, responde 429 com "Too Many Requests" e Retry-After; o próximo handler não roda
//  5. Se permitido, chama o próximo handler
//
// Capacidade, janela e limpeza vêm da configuração (rate_limit.* / RATE_LIMIT_*).
package ratelimit
