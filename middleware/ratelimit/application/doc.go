// Package application contém os casos de uso (regras de aplicação) para rate limit
// e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Gate.Check(origem, path, método) filtra as rotas protegidas e delega a
// Service.Decide(key), que retorna uma Decision (allow/deny + retry-after).
package application
