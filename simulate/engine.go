package simulate

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gamepal-app/gamepal/bus"
	"github.com/gamepal-app/gamepal/internal/types"
)

// ErrAlreadyRunning is returned when Start is called on a running engine.
var ErrAlreadyRunning = errors.New("simulation already running")

// Engine schedules the simulated audience. Each persona runs its own loop;
// the whole engine stops as one unit, including on capture escalation.
type Engine struct {
	bus           *bus.Bus
	personas      []types.Persona
	giftFrequency string

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	// test seams
	randFloat func() float64
	randIntN  func(n int) int
	intervals func(frequency string) (time.Duration, time.Duration)
}

// NewEngine creates an engine for the given personas.
func NewEngine(b *bus.Bus, personas []types.Persona, giftFrequency string) *Engine {
	if giftFrequency == "" {
		giftFrequency = "medium"
	}
	return &Engine{
		bus:           b,
		personas:      personas,
		giftFrequency: giftFrequency,
		randFloat:     rand.Float64,
		randIntN:      rand.IntN,
		intervals:     frequencyToInterval,
	}
}

// Start fires the stream-open events and launches one loop per persona.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	slog.Info("simulation started", "personas", len(e.personas))

	e.streamOpened(stop)
	for _, p := range e.personas {
		e.wg.Add(1)
		go e.personaLoop(p, stop)
	}
	return nil
}

// Stop halts all persona loops. Safe to call when not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stop)
	e.mu.Unlock()

	e.wg.Wait()
	slog.Info("simulation stopped")
}

// IsRunning reports whether persona loops are active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// streamOpened triggers the stream-start interactions: 20% chance of an
// opening gift, then a 50% chance of a greeting 5-10 seconds in.
func (e *Engine) streamOpened(stop <-chan struct{}) {
	if len(e.personas) == 0 {
		return
	}
	first := e.personas[0]

	if e.randFloat() < 0.2 {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.sendGift(first, stop)
		}()
	}

	delay := time.Duration(5+e.randIntN(6)) * time.Second
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-stop:
			return
		case <-time.After(delay):
		}
		if e.randFloat() < 0.5 {
			e.publish(Event{
				Type:      EventGreeting,
				PersonaID: first.ID,
				Nickname:  first.Nickname,
				Message:   greeting(first.Personality, first.Nickname),
			})
		}
	}()
}

// personaLoop waits a random interval per the persona's frequency band, then
// sends a chat line 70% of the time and a gift otherwise.
func (e *Engine) personaLoop(p types.Persona, stop <-chan struct{}) {
	defer e.wg.Done()

	min, max := e.intervals(p.Frequency)
	for {
		wait := min
		if span := max - min; span > 0 {
			wait += time.Duration(e.randIntN(int(span) + 1))
		}
		select {
		case <-stop:
			return
		case <-time.After(wait):
		}

		if e.randFloat() < 0.7 {
			e.sendDanmaku(p)
		} else {
			e.sendGift(p, stop)
		}
	}
}

// OnStreamerSpeak reacts to an utterance: with 90% probability, 1-3 shuffled
// personas each reply after a 0.5-2s delay.
func (e *Engine) OnStreamerSpeak(message string) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	stop := e.stop
	e.mu.Unlock()

	if len(e.personas) == 0 || e.randFloat() >= 0.9 {
		return
	}

	limit := len(e.personas)
	if limit > 3 {
		limit = 3
	}
	count := 1 + e.randIntN(limit)

	shuffled := append([]types.Persona(nil), e.personas...)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := e.randIntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	for _, p := range shuffled[:count] {
		delay := 500*time.Millisecond + time.Duration(e.randIntN(1500))*time.Millisecond
		persona := p
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			select {
			case <-stop:
				return
			case <-time.After(delay):
			}
			e.sendDanmaku(persona)
		}()
	}
}

func (e *Engine) sendDanmaku(p types.Persona) {
	templates := danmakuTemplates(p.Personality)
	e.publish(Event{
		Type:        EventDanmaku,
		PersonaID:   p.ID,
		Nickname:    p.Nickname,
		Message:     templates[e.randIntN(len(templates))],
		Personality: p.Personality,
	})
}

// sendGift sends a combo of gift events with a 500ms beat between them.
func (e *Engine) sendGift(p types.Persona, stop <-chan struct{}) {
	minCount, maxCount, minCombo, maxCombo := giftParams(e.giftFrequency)

	combo := minCombo + e.randIntN(maxCombo-minCombo+1)
	name := giftNames[e.randIntN(len(giftNames))]

	for i := 0; i < combo; i++ {
		count := minCount + e.randIntN(maxCount-minCount+1)
		e.publish(Event{
			Type:      EventGift,
			PersonaID: p.ID,
			Nickname:  p.Nickname,
			GiftName:  name,
			GiftCount: count,
		})

		if i == combo-1 {
			break
		}
		select {
		case <-stop:
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (e *Engine) publish(ev Event) {
	ev.Timestamp = time.Now().Unix()
	e.bus.Publish(bus.TopicSimulationEvent, ev)
}
