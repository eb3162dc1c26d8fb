package step

import (
	"errors"

	"tmt/internal/workdir"
	"tmt/pkg/logging"
)

const guestsFile = "guests"

// ProvisionStep prepares the guests tests run on.
type ProvisionStep struct {
	*Step

	saved []GuestData
}

// NewProvision creates the provision step.
func NewProvision(plan Plan, data interface{}, logger *logging.Logger, opts ...Option) *ProvisionStep {
	p := &ProvisionStep{Step: New(Provision, plan, data, logger, opts...)}
	p.Step.state = p
	return p
}

// Guests returns the guests of all provision phases.
func (p *ProvisionStep) Guests() []Guest {
	var guests []Guest
	for _, phase := range p.phases {
		if gp, ok := phase.(GuestProvider); ok {
			guests = append(guests, gp.Guests()...)
		}
	}
	return guests
}

// SavedGuests returns the guest descriptions persisted by the last run.
func (p *ProvisionStep) SavedGuests() []GuestData {
	return append([]GuestData(nil), p.saved...)
}

func (p *ProvisionStep) reset() { p.saved = nil }

func (p *ProvisionStep) files() []string { return []string{guestsFile} }

func (p *ProvisionStep) load(storage *workdir.Storage, section string) error {
	var guests []GuestData
	if err := storage.Load(section, guestsFile, &guests); err != nil {
		if errors.Is(err, workdir.ErrNotFound) {
			return nil
		}
		return err
	}
	p.saved = guests
	return nil
}

func (p *ProvisionStep) save(storage *workdir.Storage, section string) error {
	guests := p.saved
	if live := p.describeGuests(); len(live) > 0 {
		guests = live
	}
	p.saved = guests
	return storage.Save(section, guestsFile, guests)
}

func (p *ProvisionStep) describeGuests() []GuestData {
	var out []GuestData
	for _, phase := range p.phases {
		gp, ok := phase.(GuestProvider)
		if !ok {
			continue
		}
		for _, g := range gp.Guests() {
			out = append(out, GuestData{Name: g.Name(), Role: g.Role(), How: phase.How(), Phase: phase.Name()})
		}
	}
	return out
}
