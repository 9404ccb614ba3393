//go:build integration

package integration

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/kronosd/internal/daemon"
	"github.com/eliteGoblin/kronosd/internal/domain"
	"github.com/eliteGoblin/kronosd/internal/infra"
	"github.com/eliteGoblin/kronosd/internal/normalize"
	"github.com/eliteGoblin/kronosd/internal/usecase"
	"github.com/eliteGoblin/kronosd/test/fixtures"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

var _ = Describe("Tracker pipeline", func() {
	var (
		ctx        context.Context
		dataDir    string
		desktop    *fixtures.ScriptedDesktop
		backend    *fixtures.FakeBackend
		identity   *infra.IdentityFile
		journal    *infra.Journal
		tracker    *usecase.Tracker
		dispatcher *daemon.Dispatcher
	)

	signIn := func(userID string) {
		Expect(identity.Save(domain.Identity{UserID: userID})).To(Succeed())
	}

	// tick runs one poll at the given second and queues what it closed.
	tick := func(sec int) {
		for _, ev := range tracker.Tick(ctx, at(sec)) {
			dispatcher.Submit(ev)
		}
	}

	shutdown := func(sec int) {
		for _, ev := range tracker.Shutdown(at(sec)) {
			dispatcher.Submit(ev)
		}
		Expect(dispatcher.Close(5 * time.Second)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		dataDir, err = os.MkdirTemp("", "kronosd-integration-*")
		Expect(err).NotTo(HaveOccurred())

		desktop = fixtures.NewScriptedDesktop()
		backend = fixtures.NewFakeBackend()
		identity = infra.NewIdentityFile(filepath.Join(dataDir, infra.IdentityFileName))

		httpSink, err := infra.NewHTTPSink(backend.URL, "anon-key")
		Expect(err).NotTo(HaveOccurred())
		journal, err = infra.OpenJournal(dataDir)
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		segmenter := usecase.NewSegmenter(usecase.SegmenterConfig{
			TitleDebounce: 10 * time.Second,
			Browsers:      []string{"Browser"},
		}, normalize.NewDefault())
		collector := usecase.NewCollector(usecase.DefaultCollectorConfig(), desktop, desktop, segmenter, logger)
		tracker = usecase.NewTracker(identity, collector, segmenter, logger)

		sink := infra.NewMultiSink(
			infra.NamedSink{Name: "track-event", Sink: httpSink},
			infra.NamedSink{Name: "journal", Sink: journal},
		)
		dispatcher = daemon.NewDispatcher(sink, daemon.DefaultQueueSize, time.Second, logger)
	})

	AfterEach(func() {
		_ = dispatcher.Close(time.Second)
		journal.Close()
		backend.Close()
		os.RemoveAll(dataDir)
	})

	Describe("switching between an editor and a browser", func() {
		It("emits one event per app and per URL with exact durations", func() {
			signIn("user-42")

			desktop.Focus("Editor", "main.go", "")
			for s := 0; s < 5; s++ {
				tick(s)
			}
			desktop.Focus("Browser", "Docs", "a.com")
			for s := 5; s < 8; s++ {
				tick(s)
			}
			desktop.Focus("Browser", "Docs", "b.com")
			for s := 8; s < 12; s++ {
				tick(s)
			}
			desktop.Focus("Editor", "main.go", "")
			for s := 12; s < 15; s++ {
				tick(s)
			}
			shutdown(15)

			got := backend.Received()
			Expect(got).To(HaveLen(4))

			Expect(got[0].AppName).To(Equal("Editor"))
			Expect(got[0].Timestamp).To(Equal("2024-03-01T09:00:00.000Z"))
			Expect(got[0].DurationSeconds).To(Equal(5))
			Expect(got[0].URL).To(BeNil())

			Expect(got[1].AppName).To(Equal("Browser"))
			Expect(*got[1].URL).To(Equal("a.com"))
			Expect(got[1].DurationSeconds).To(Equal(3))

			Expect(*got[2].URL).To(Equal("b.com"))
			Expect(got[2].Timestamp).To(Equal("2024-03-01T09:00:08.000Z"))
			Expect(got[2].DurationSeconds).To(Equal(4))

			Expect(got[3].AppName).To(Equal("Editor"))
			Expect(got[3].DurationSeconds).To(Equal(3))

			for _, ev := range got {
				Expect(ev.UserID).To(Equal("user-42"))
			}

			n, err := journal.Count()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(4))
		})
	})

	Describe("noisy window titles", func() {
		It("keeps one segment while only the clock in the title changes", func() {
			signIn("user-42")

			for s := 0; s < 30; s++ {
				desktop.Focus("Music", "Song - 0:"+twoDigits(s)+" / 3:45", "")
				tick(s)
			}
			shutdown(30)

			got := backend.Received()
			Expect(got).To(HaveLen(1))
			Expect(got[0].DurationSeconds).To(Equal(30))
		})
	})

	Describe("going idle", func() {
		It("closes the active segment at the threshold and the idle one on return", func() {
			signIn("user-42")
			desktop.Focus("Editor", "main.go", "")

			for s := 0; s <= 304; s++ {
				desktop.SetIdle(time.Duration(s) * time.Second)
				tick(s)
			}
			Expect(dispatcher.Dropped()).To(BeZero())

			desktop.Focus("Editor", "main.go", "")
			tick(305)
			shutdown(306)

			got := backend.Received()
			Expect(got).To(HaveLen(3))

			Expect(got[0].AppName).To(Equal("Editor"))
			Expect(got[0].DurationSeconds).To(Equal(300))
			Expect(got[0].IsIdle).To(BeFalse())

			Expect(got[1].AppName).To(Equal(domain.IdleApp))
			Expect(got[1].WindowTitle).To(Equal(domain.IdleTitle))
			Expect(got[1].IsIdle).To(BeTrue())
			Expect(got[1].Timestamp).To(Equal("2024-03-01T09:05:00.000Z"))
			Expect(got[1].DurationSeconds).To(Equal(5))

			Expect(got[2].DurationSeconds).To(Equal(1))
		})
	})

	Describe("without a signed-in user", func() {
		It("never probes the OS and never emits", func() {
			desktop.Focus("Editor", "main.go", "")
			for s := 0; s < 100; s++ {
				tick(s)
			}
			shutdown(100)

			Expect(backend.Received()).To(BeEmpty())
			windowCalls, idleCalls := desktop.ProbeCalls()
			Expect(windowCalls).To(BeZero())
			Expect(idleCalls).To(BeZero())
		})
	})

	Describe("pausing", func() {
		It("flushes the open segment and excludes paused time", func() {
			signIn("user-42")
			desktop.Focus("Editor", "main.go", "")
			for s := 0; s < 10; s++ {
				tick(s)
			}

			Expect(identity.SetPaused(true)).To(Succeed())
			for s := 10; s < 60; s++ {
				tick(s)
			}
			Expect(identity.SetPaused(false)).To(Succeed())
			for s := 60; s < 70; s++ {
				tick(s)
			}
			shutdown(70)

			got := backend.Received()
			Expect(got).To(HaveLen(2))
			Expect(got[0].DurationSeconds).To(Equal(10))
			Expect(got[1].Timestamp).To(Equal("2024-03-01T09:01:00.000Z"))
			Expect(got[1].DurationSeconds).To(Equal(10))
		})
	})

	Describe("a failing backend", func() {
		It("drops the remote delivery but keeps the local journal", func() {
			signIn("user-42")
			backend.FailWith(http.StatusInternalServerError)

			desktop.Focus("Editor", "main.go", "")
			tick(0)
			desktop.Focus("Terminal", "zsh", "")
			tick(4)
			shutdown(6)

			Expect(backend.Received()).To(BeEmpty())
			events, err := journal.Recent(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(2))
			Expect(events[0].AppName).To(Equal("Terminal"))
			Expect(events[1].AppName).To(Equal("Editor"))
			Expect(events[1].DurationSeconds).To(Equal(4))
		})
	})

	Describe("the watcher daemon", func() {
		It("delivers the final segment when stopped", func() {
			signIn("user-42")
			desktop.Focus("Editor", "main.go", "")

			watcher := daemon.NewWatcher(daemon.WatcherConfig{
				PollInterval: 10 * time.Millisecond,
				DrainTimeout: 2 * time.Second,
			}, tracker, dispatcher, zap.NewNop())

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- watcher.Run(runCtx) }()

			Eventually(func() int {
				w, _ := desktop.ProbeCalls()
				return w
			}).Should(BeNumerically(">=", 3))

			desktop.Focus("Terminal", "zsh", "")
			Eventually(backend.Received).Should(HaveLen(1))

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))

			got := backend.Received()
			Expect(got).To(HaveLen(2))
			Expect(got[0].AppName).To(Equal("Editor"))
			Expect(got[1].AppName).To(Equal("Terminal"))
		})
	})
})

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
