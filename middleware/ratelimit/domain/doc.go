// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura.
//
// Tipos principais: Key (origem + path), Quota (capacidade + janela),
// RoutePolicy (quais rotas são protegidas) e Decision (admite/rejeita).
package domain
