// Package behavior hooks proffer behaviors into GORM's create and update
// callback chains
package behavior

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bitwise74/proffer/internal/metrics"
	"bitwise74/proffer/pkg/proffer"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type entry struct {
	b     *proffer.Behavior
	rules Rules
}

// Plugin runs, in this order, before GORM's own before_create/before_update:
// proffer:before_validate, proffer:validate and proffer:before_save
type Plugin struct {
	tables map[string]*entry
}

func New() *Plugin {
	return &Plugin{tables: map[string]*entry{}}
}

// Attach registers b for its table. Rules may be nil in which case every
// field may be empty and nothing is validated.
func (p *Plugin) Attach(b *proffer.Behavior, rules Rules) {
	p.tables[strings.ToLower(b.Table())] = &entry{b: b, rules: rules}
}

func (p *Plugin) Name() string {
	return "proffer"
}

func (p *Plugin) Initialize(db *gorm.DB) error {
	create := db.Callback().Create()
	update := db.Callback().Update()

	err := errors.Join(
		create.Before("gorm:before_create").Register("proffer:before_validate", p.beforeValidate),
		create.After("proffer:before_validate").Before("gorm:before_create").Register("proffer:validate", p.validate),
		create.After("proffer:validate").Before("gorm:before_create").Register("proffer:before_save", p.beforeSave),

		update.Before("gorm:before_update").Register("proffer:before_validate", p.beforeValidate),
		update.After("proffer:before_validate").Before("gorm:before_update").Register("proffer:validate", p.validate),
		update.After("proffer:validate").Before("gorm:before_update").Register("proffer:before_save", p.beforeSave),
	)
	if err != nil {
		return fmt.Errorf("failed to register proffer callbacks, %w", err)
	}

	return nil
}

// lookup finds the behavior and record for the statement being executed
func (p *Plugin) lookup(db *gorm.DB) (*entry, proffer.Record, bool) {
	if db.Error != nil || db.Statement == nil {
		return nil, nil, false
	}

	e, ok := p.tables[strings.ToLower(db.Statement.Table)]
	if !ok {
		return nil, nil, false
	}

	rec, ok := db.Statement.Dest.(proffer.Record)
	if !ok {
		rec, ok = db.Statement.Model.(proffer.Record)
	}
	if !ok {
		return nil, nil, false
	}

	return e, rec, true
}

func (p *Plugin) beforeValidate(db *gorm.DB) {
	e, rec, ok := p.lookup(db)
	if !ok {
		return
	}

	var rules proffer.EmptyRules
	if e.rules != nil {
		rules = e.rules
	}

	e.b.BeforeValidate(rec, rules)
}

func (p *Plugin) validate(db *gorm.DB) {
	e, rec, ok := p.lookup(db)
	if !ok || e.rules == nil {
		return
	}

	if err := e.rules.Validate(rec); err != nil {
		metrics.Intakes.WithLabelValues(e.b.Table(), metrics.OutcomeInvalid).Inc()
		db.AddError(err)
	}
}

func (p *Plugin) beforeSave(db *gorm.DB) {
	e, rec, ok := p.lookup(db)
	if !ok {
		return
	}

	table := e.b.Table()

	if !e.b.HasUploads(rec) {
		metrics.Intakes.WithLabelValues(table, metrics.OutcomeSkipped).Inc()
		return
	}

	now := time.Now()

	err := e.b.BeforeSave(db.Statement.Context, rec)
	metrics.IntakeDuration.WithLabelValues(table).Observe(time.Since(now).Seconds())

	switch {
	case err == nil:
		metrics.Intakes.WithLabelValues(table, metrics.OutcomeMoved).Inc()
		return
	case proffer.IsClientError(err):
		metrics.Intakes.WithLabelValues(table, metrics.OutcomeRejected).Inc()
	default:
		metrics.Intakes.WithLabelValues(table, metrics.OutcomeFailed).Inc()
		zap.L().Error("Upload intake failed", zap.String("table", table), zap.Error(err))
	}

	db.AddError(err)
}
