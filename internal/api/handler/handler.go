package handler

import (
	"github.com/d60-Lab/content-factory/config"
	"github.com/d60-Lab/content-factory/internal/igclient"
	"github.com/d60-Lab/content-factory/internal/proxypool"
	"github.com/d60-Lab/content-factory/internal/publisher"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/internal/service"
	"github.com/d60-Lab/content-factory/internal/session"
	"github.com/d60-Lab/content-factory/internal/tracker"
	"github.com/d60-Lab/content-factory/internal/translate"
)

// Handler 聚合全部 HTTP 入口的依赖
type Handler struct {
	cfg *config.Config

	auth     *service.AuthService
	sessions *session.Manager
	pool     *proxypool.Pool
	pub      *publisher.Publisher
	track    *tracker.Tracker
	trans    translate.Translator
	client   igclient.Client
	recorder *service.ActivityRecorder

	accounts repository.AccountRepository
	groups   repository.GroupRepository
	proxies  repository.ProxyRepository
	posts    repository.PostRepository
	activity repository.ActivityLogRepository
}

// Deps Handler 的构造参数
type Deps struct {
	Cfg      *config.Config
	Auth     *service.AuthService
	Sessions *session.Manager
	Pool     *proxypool.Pool
	Pub      *publisher.Publisher
	Track    *tracker.Tracker
	Trans    translate.Translator
	Client   igclient.Client
	Recorder *service.ActivityRecorder
	Accounts repository.AccountRepository
	Groups   repository.GroupRepository
	Proxies  repository.ProxyRepository
	Posts    repository.PostRepository
	Activity repository.ActivityLogRepository
}

func New(d Deps) *Handler {
	return &Handler{
		cfg:      d.Cfg,
		auth:     d.Auth,
		sessions: d.Sessions,
		pool:     d.Pool,
		pub:      d.Pub,
		track:    d.Track,
		trans:    d.Trans,
		client:   d.Client,
		recorder: d.Recorder,
		accounts: d.Accounts,
		groups:   d.Groups,
		proxies:  d.Proxies,
		posts:    d.Posts,
		activity: d.Activity,
	}
}
