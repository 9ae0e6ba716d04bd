// Package domain define contratos e tipos de domínio para o throttle de
// atualização de merchant.
//
// Este pacote não depende de net/http nem de implementações concretas de
// storage. A intenção é permitir testes de unidade puros e desacoplar as
// regras (janela semanal, janela diária, cooldown) dos detalhes de infra.
package domain
