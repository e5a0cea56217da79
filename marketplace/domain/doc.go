// Package domain define as entidades do marketplace (usuários, anúncios, arquivos)
// e os contratos de armazenamento, sem dependência de HTTP ou banco.
package domain
