package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/roach88/tba/internal/accumulator"
	"github.com/roach88/tba/internal/event"
	"github.com/roach88/tba/internal/platform"
)

// handle applies one internal event to the state. Called only from the
// control loop.
func (t *Tour) handle(ev internalEvent) {
	t.metrics.internal(ev.kind())

	switch e := ev.(type) {
	case timeTick:
		for i := 0; i < max(e.ticks, 1); i++ {
			t.onTick(e.at)
		}
	case arenaUpdate:
		t.state = t.state.withArena(e.arena)
	case participants:
		t.onParticipants(e)
	case memberPoll:
		t.onMemberPoll(e)
	case gameOutcome:
		t.onGame(e.game)
	case standingsUpdate:
		t.onStandings(e)
	case feedFailed:
		t.onFeedFailed(e)
	case batchAddFailed:
		t.onBatchAddFailed(e)
	default:
		t.logger.Warn("unexpected internal event", "kind", ev.kind())
	}
}

func (t *Tour) onTick(now time.Time) {
	switch s := t.state.(type) {
	case initial:
		t.state = t.leaveInitial(s, now)
		t.logger.Info("tour state", "state", stateName(t.state))

	case notStarted:
		s.d.timers = t.runTimers(s.d.timers)
		if now.Before(s.d.a.StartsAt) {
			t.state = s
			return
		}
		s.d.timers = append(s.d.timers, accumulator.NewRepeatableAction(standingsTicks, t.standingsRefresh()))
		r := running{d: s.d, monitor: &small{}, results: resultAccumulators(true)}
		t.state = r
		t.logger.Info("tour state", "state", "running")
		t.emit(event.TourBegin{})
		r.monitor = t.updateMonitor(r.monitor, r.d.roster)
		t.state = r

	case running:
		s.d.timers = t.runTimers(s.d.timers)
		if now.Before(s.d.a.EndsAt()) {
			t.state = s
			return
		}
		s.monitor.close()
		t.state = ended{d: data{a: s.d.a, members: s.d.members}}
		t.logger.Info("tour state", "state", "ended")
		t.emit(event.TourEnd{})

	case ended:
	}
}

func (t *Tour) leaveInitial(s initial, now time.Time) state {
	a := s.a
	switch {
	case now.Before(a.StartsAt):
		return notStarted{d: data{a: a, timers: []timer{
			accumulator.NewRepeatableAction(arenaRefreshTicks, t.arenaRefresh()),
			accumulator.NewRepeatableActionAt(rosterRefreshTicks, rosterRefreshTicks, t.rosterRefresh()),
		}}}
	case now.After(a.EndsAt()):
		return ended{d: data{a: a}}
	default:
		return running{
			d: data{a: a, timers: []timer{
				accumulator.NewRepeatableAction(arenaRefreshTicks, t.arenaRefresh()),
				accumulator.NewRepeatableActionAt(rosterRefreshTicks, rosterRefreshTicks, t.rosterRefresh()),
				accumulator.NewRepeatableActionAt(standingsTicks, standingsTicks, t.standingsRefresh()),
			}},
			monitor: &small{},
			results: resultAccumulators(false),
		}
	}
}

func (t *Tour) runTimers(timers []timer) []timer {
	next, due := accumulator.Run(timers, accumulator.Tick{})
	for _, a := range due {
		t.runAction(a)
	}
	return next
}

func (t *Tour) arenaRefresh() action {
	id := t.arenaID
	return action{op: OpArenaRefresh, run: func(ctx context.Context) (internalEvent, error) {
		a, err := t.platform.ArenaByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return arenaUpdate{arena: a}, nil
	}}
}

func (t *Tour) rosterRefresh() action {
	id, team := t.arenaID, t.team.ID
	return action{op: OpRoster, run: func(ctx context.Context) (internalEvent, error) {
		results, err := t.platform.ArenaResults(ctx, id)
		if err != nil {
			return nil, err
		}
		p := participants{
			all:   make(map[string]struct{}, len(results)),
			names: make(map[string]string, len(results)),
		}
		for _, r := range results {
			uid := r.UserID()
			p.all[uid] = struct{}{}
			p.names[uid] = r.Username
			if r.TeamID == team {
				p.members = append(p.members, participant{id: uid, withdrawn: r.Withdrawn})
			}
		}
		return p, nil
	}}
}

func (t *Tour) standingsRefresh() action {
	id := t.arenaID
	return action{op: OpStandings, run: func(ctx context.Context) (internalEvent, error) {
		scores, err := t.platform.TeamStandings(ctx, id)
		if err != nil {
			return nil, err
		}
		return standingsUpdate{scores: scores}, nil
	}}
}

func (t *Tour) onParticipants(p participants) {
	for id, name := range p.names {
		t.names.Put(id, name)
	}

	switch s := t.state.(type) {
	case notStarted:
		s.d = t.updateMembers(s.d, p)
		t.state = s
	case running:
		s.d = t.updateMembers(s.d, p)
		s.monitor = t.updateMonitor(s.monitor, p)
		t.state = s
	}
}

// updateMembers replaces the roster and announces members not seen before.
// The first roster of a Tour is taken as is.
func (t *Tour) updateMembers(d data, p participants) data {
	ids := p.memberIDs()
	if d.members.known {
		var joined []string
		for id := range ids {
			if !d.members.has(id) {
				joined = append(joined, id)
			}
		}
		if ev, err := event.NewJoin(joined); err == nil {
			t.emit(ev)
		}
	}
	d.members = membership{known: true, ids: ids}
	d.roster = p
	return d
}

// updateMonitor keeps following the arena after the roster changed. A small
// monitor is rebuilt when the participant set changed, and replaced by a
// large one once the arena outgrows the limit. A large monitor stays large.
func (t *Tour) updateMonitor(m monitor, p participants) monitor {
	switch m := m.(type) {
	case *small:
		if maps.Equal(m.users, p.all) {
			return m
		}
		m.close()

		if len(p.all) <= t.smallLimit {
			if len(p.all) == 0 {
				return &small{}
			}
			ids := slices.Sorted(maps.Keys(p.all))
			t.feedSeq++
			name := fmt.Sprintf("games-by-users-%03d", t.feedSeq)
			f := t.startFeed(name, func(ctx context.Context) (platform.GameStream, error) {
				return t.platform.GamesByUserIDs(ctx, ids)
			})
			return &small{feed: f, users: p.all}
		}

		t.metrics.switched()
		t.logger.Info("switching to polled game batches", "participants", len(p.all), "limit", t.smallLimit)
		l := newLarge()
		t.pollMembers(p.active(l.monitored))
		return l

	case *large:
		t.pollMembers(p.active(m.monitored))
		return m

	default:
		return m
	}
}

// pollMembers asks the platform which of ids are playing right now.
func (t *Tour) pollMembers(ids []string) {
	if len(ids) == 0 {
		t.onMemberPoll(memberPoll{})
		return
	}
	t.runAction(action{op: OpMemberPoll, run: func(ctx context.Context) (internalEvent, error) {
		statuses, err := t.platform.UserStatus(ctx, ids)
		if err != nil {
			return nil, err
		}
		var playing []platform.UserStatus
		for _, s := range statuses {
			if s.Playing() {
				playing = append(playing, s)
			}
		}
		return memberPoll{playing: playing}, nil
	}})
}

// onMemberPoll attaches newly playing members to batches: finished batches
// are dropped, the newest batch is topped up to capacity, the rest go to new
// batches.
func (t *Tour) onMemberPoll(p memberPoll) {
	s, ok := t.state.(running)
	if !ok {
		return
	}
	l, ok := s.monitor.(*large)
	if !ok {
		return
	}

	for _, stream := range l.expire() {
		t.logger.Debug("batch finished", "feed", stream)
	}

	capacity := max(t.platform.MaxGamesPerStream(), 1)
	games := make(map[string]struct{})
	var fresh []platform.UserStatus
	for _, st := range p.playing {
		if !s.d.members.has(st.ID) {
			continue
		}
		if _, ok := l.monitored[st.ID]; ok {
			continue
		}
		if _, ok := games[st.PlayingGameID]; ok {
			continue
		}
		if _, ok := t.finished[st.PlayingGameID]; ok || l.tracked(st.PlayingGameID) {
			continue
		}
		games[st.PlayingGameID] = struct{}{}
		fresh = append(fresh, st)
	}
	if len(fresh) == 0 {
		return
	}

	if n := len(l.batches); n > 0 {
		last := l.batches[n-1]
		if room := capacity - len(last.games); room > 0 {
			take := fresh[:min(room, len(fresh))]
			fresh = fresh[len(take):]
			attach(l, last, take)
			t.addGames(last.stream, take)
		}
	}

	for chunk := range slices.Chunk(fresh, capacity) {
		t.streamSeq++
		b := newBatch(fmt.Sprintf("stream-games-by-ids-%03d", t.streamSeq))
		attach(l, b, chunk)
		stream, ids := b.stream, gameIDs(chunk)
		b.feed = t.startFeed(stream, func(ctx context.Context) (platform.GameStream, error) {
			return t.platform.GamesByGameIDs(ctx, stream, ids)
		})
		l.batches = append(l.batches, b)
	}
}

func attach(l *large, b *batch, playing []platform.UserStatus) {
	for _, st := range playing {
		b.games[st.PlayingGameID] = false
		b.members[st.ID] = st.PlayingGameID
		l.monitored[st.ID] = struct{}{}
	}
}

func gameIDs(playing []platform.UserStatus) []string {
	ids := make([]string, len(playing))
	for i, st := range playing {
		ids[i] = st.PlayingGameID
	}
	return ids
}

// addGames extends a running batch on a worker. On failure the members are
// released again so the next poll retries them.
func (t *Tour) addGames(stream string, playing []platform.UserStatus) {
	ids := gameIDs(playing)
	members := make([]string, len(playing))
	for i, st := range playing {
		members[i] = st.ID
	}
	t.spawn(func(ctx context.Context) {
		if err := t.platform.AddGameIDs(ctx, stream, ids); err != nil {
			if ctx.Err() != nil {
				return
			}
			t.remoteFailed(OpAddGames, fmt.Errorf("%s: %w", stream, err))
			t.queue.Enqueue(ctx, batchAddFailed{stream: stream, members: members})
		}
	})
}

func (t *Tour) onGame(g platform.GameMeta) {
	s, ok := t.state.(running)
	if !ok {
		return
	}
	if _, dup := t.finished[g.ID]; dup {
		return
	}
	t.finished[g.ID] = struct{}{}

	if l, ok := s.monitor.(*large); ok {
		l.resolve(g.ID)
	}

	r, ok := resultOf(g, s.d.members)
	if !ok {
		return
	}

	var out []event.Event
	s.results, out = accumulator.Run(s.results, r)
	t.state = s
	for _, ev := range out {
		t.emit(ev)
	}
}

// resultOf reads a finished game from the side of the team member playing
// it. Games without a member and aborted games have no result.
func resultOf(g platform.GameMeta, members membership) (accumulator.GameResult, bool) {
	if !g.Status.Ended() || g.Status.Aborted() {
		return accumulator.GameResult{}, false
	}

	var (
		me, opp platform.Player
		color   platform.Color
	)
	switch {
	case members.has(g.White.UserID):
		me, opp, color = g.White, g.Black, platform.White
	case members.has(g.Black.UserID):
		me, opp, color = g.Black, g.White, platform.Black
	default:
		return accumulator.GameResult{}, false
	}

	outcome := accumulator.Draw
	switch g.Winner {
	case "":
	case color:
		outcome = accumulator.Win
	default:
		outcome = accumulator.Loss
	}

	return accumulator.GameResult{
		GameID:         g.ID,
		UserID:         me.UserID,
		OpponentID:     opp.UserID,
		Outcome:        outcome,
		RatingDiff:     opp.Rating - me.Rating,
		AnyProvisional: me.Provisional || opp.Provisional,
	}, true
}

func (t *Tour) onStandings(u standingsUpdate) {
	s, ok := t.state.(running)
	if !ok {
		return
	}
	scores := make([]event.TeamScore, 0, len(u.scores))
	for _, sc := range u.scores {
		scores = append(scores, event.TeamScore{Team: s.d.a.TeamName(sc.TeamID), Score: sc.Score})
	}
	t.emit(event.NewStandings(scores))
}

func (t *Tour) onFeedFailed(f feedFailed) {
	s, ok := t.state.(running)
	if !ok {
		return
	}
	switch m := s.monitor.(type) {
	case *small:
		if m.feed == nil || m.feed.name != f.feed {
			return
		}
		m.close()
		// An empty small monitor differs from any roster, so the next roster
		// refresh reopens the stream.
		s.monitor = &small{}
		t.state = s
	case *large:
		m.drop(f.feed)
	}
}

func (t *Tour) onBatchAddFailed(f batchAddFailed) {
	s, ok := t.state.(running)
	if !ok {
		return
	}
	l, ok := s.monitor.(*large)
	if !ok {
		return
	}
	if b, _ := l.batch(f.stream); b != nil {
		l.detach(b, f.members)
	}
}
