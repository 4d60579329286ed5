package main

import "sync"

// barcodeLocks serializa as mutações de um mesmo código de barras dentro do processo
type barcodeLocks struct {
	mu    sync.Mutex
	locks map[string]*barcodeLock
}

type barcodeLock struct {
	sync.Mutex
	refs int
}

func newBarcodeLocks() *barcodeLocks {
	return &barcodeLocks{locks: make(map[string]*barcodeLock)}
}

// Lock bloqueia o código de barras e devolve a função de liberação
func (b *barcodeLocks) Lock(barcode string) func() {
	b.mu.Lock()
	l, ok := b.locks[barcode]
	if !ok {
		l = &barcodeLock{}
		b.locks[barcode] = l
	}
	l.refs++
	b.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		b.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, barcode)
		}
		b.mu.Unlock()
	}
}

// size retorna quantos códigos têm lock ativo ou aguardando
func (b *barcodeLocks) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.locks)
}
