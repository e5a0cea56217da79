// Package infra contém as implementações dos stores do marketplace: em memória
// (padrão, sem banco configurado), Postgres via GORM e arquivos enviados em disco.
package infra
