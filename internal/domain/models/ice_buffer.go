package models

import "github.com/pion/webrtc/v4"

// IceCandidateBuffer копит кандидатов одного направления, пока у получателя
// не установлено remote description. Сливается ровно один раз.
type IceCandidateBuffer struct {
	candidates []webrtc.ICECandidateInit
	drained    bool
}

// Push добавляет кандидата. После слива буфер закрыт и возвращает false.
func (b *IceCandidateBuffer) Push(c webrtc.ICECandidateInit) bool {
	if b.drained {
		return false
	}

	b.candidates = append(b.candidates, c)

	return true
}

// Drain отдаёт накопленных кандидатов в порядке поступления. Повторный вызов возвращает nil.
func (b *IceCandidateBuffer) Drain() []webrtc.ICECandidateInit {
	if b.drained {
		return nil
	}

	out := b.candidates
	b.candidates = nil
	b.drained = true

	return out
}

// Discard выбрасывает буфер без доставки
func (b *IceCandidateBuffer) Discard() {
	b.candidates = nil
	b.drained = true
}

func (b *IceCandidateBuffer) Len() int {
	return len(b.candidates)
}

func (b *IceCandidateBuffer) Drained() bool {
	return b.drained
}
