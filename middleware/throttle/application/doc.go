// Package application contém os casos de uso do throttle de atualização de
// merchant: leitura do histórico, registro de tentativa e a decisão
// allow/deny (Gate), além do limite de atualizações simultâneas por merchant.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Attempt(ctx, id) decide e, se permitido, registra a tentativa.
package application
