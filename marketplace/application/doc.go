// Package application implementa os casos de uso do marketplace: cadastro e login
// (emitindo bearer tokens) e publicação/consulta de anúncios.
package application
