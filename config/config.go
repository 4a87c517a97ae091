package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	sgo "github.com/gagliardetto/solana-go"
	"github.com/solpipe/solana-relay/broadcast"
	"github.com/solpipe/solana-relay/peer"
	"github.com/solpipe/solana-relay/policy"
	"github.com/solpipe/solana-relay/ratelimit"
	"gopkg.in/yaml.v3"
)

const DEFAULT_DIRECTORY_STALENESS = 5 * time.Minute

type Policy struct {
	UsdcMint             string   `yaml:"usdcMint"`
	WaudioMint           string   `yaml:"waudioMint"`
	ClaimableProgram     string   `yaml:"claimableProgram"`
	RewardManagerProgram string   `yaml:"rewardManagerProgram"`
	RewardManagerState   string   `yaml:"rewardManagerState"`
	PaymentRouterProgram string   `yaml:"paymentRouterProgram"`
	CollectionAccount    string   `yaml:"collectionAccount"`
	ProtocolWallets      []string `yaml:"protocolWallets"`
	PassThrough          []string `yaml:"passThrough"`
}

type RateLimit struct {
	AccountCreation ratelimit.Config `yaml:"accountCreation"`
	Ip              ratelimit.Config `yaml:"ip"`
	IpRoute         ratelimit.Config `yaml:"ipRoute"`
}

type Node struct {
	Endpoint string `yaml:"endpoint"`
	Wallet   string `yaml:"wallet"`
}

type Peers struct {
	// Self is this relay's public endpoint; it is skipped when forwarding.
	Self      string        `yaml:"self"`
	Discovery string        `yaml:"discovery"`
	Staleness time.Duration `yaml:"staleness"`
	Static    []Node        `yaml:"static"`
}

type Broadcast struct {
	SendInterval time.Duration `yaml:"sendInterval"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

type Server struct {
	// TrustedProxies are the CIDRs whose forwarding headers name the client ip.
	TrustedProxies []string `yaml:"trustedProxies"`
}

type Configuration struct {
	Policy    Policy    `yaml:"policy"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Peers     Peers     `yaml:"peers"`
	Broadcast Broadcast `yaml:"broadcast"`
	Server    Server    `yaml:"server"`
}

func Default() Configuration {
	return Configuration{
		Policy: Policy{
			UsdcMint:             policy.DEFAULT_USDC_MINT,
			WaudioMint:           policy.DEFAULT_WAUDIO_MINT,
			ClaimableProgram:     policy.DEFAULT_CLAIMABLE_PROGRAM_ID,
			RewardManagerProgram: policy.DEFAULT_REWARD_PROGRAM_ID,
			RewardManagerState:   policy.DEFAULT_REWARD_STATE,
			PaymentRouterProgram: policy.DEFAULT_PAYMENT_ROUTER,
		},
		RateLimit: RateLimit{
			AccountCreation: ratelimit.Config{Prefix: "relay:ata", Hourly: 10, Daily: 50, Weekly: 200},
			Ip:              ratelimit.Config{Prefix: "relay:ip", Hourly: 1000, Daily: 10000, Weekly: 50000},
			IpRoute:         ratelimit.Config{Prefix: "relay:ip-route", Hourly: 500, Daily: 5000, Weekly: 25000},
		},
		Peers: Peers{Staleness: DEFAULT_DIRECTORY_STALENESS},
		Broadcast: Broadcast{
			SendInterval: broadcast.DEFAULT_SEND_INTERVAL,
			PollInterval: broadcast.DEFAULT_POLL_INTERVAL,
		},
	}
}

// Load overlays the yaml file at path onto the defaults. An empty path returns the defaults.
func Load(path string) (Configuration, error) {
	config := Default()
	if len(path) == 0 {
		return config, config.Check()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	return Parse(data)
}

func Parse(data []byte) (Configuration, error) {
	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return config, config.Check()
}

func (config Configuration) Check() error {
	if _, err := config.PolicyConfiguration(); err != nil {
		return err
	}
	for _, r := range []ratelimit.Config{config.RateLimit.AccountCreation, config.RateLimit.Ip, config.RateLimit.IpRoute} {
		if len(r.Prefix) == 0 {
			return errors.New("rate limit without prefix")
		}
		if r.Hourly <= 0 || r.Daily <= 0 || r.Weekly <= 0 {
			return fmt.Errorf("rate limit %s must have positive limits", r.Prefix)
		}
	}
	if _, err := config.StaticNodes(); err != nil {
		return err
	}
	if _, err := config.TrustedProxies(); err != nil {
		return err
	}
	if config.Peers.Staleness < 0 {
		return errors.New("negative directory staleness")
	}
	return nil
}

func (config Configuration) PolicyConfiguration() (policy.Configuration, error) {
	p := config.Policy
	ans := policy.Configuration{}
	var err error
	required := []struct {
		name  string
		value string
		dst   *sgo.PublicKey
	}{
		{"usdcMint", p.UsdcMint, &ans.UsdcMint},
		{"waudioMint", p.WaudioMint, &ans.WaudioMint},
		{"claimableProgram", p.ClaimableProgram, &ans.ClaimableProgram},
		{"rewardManagerProgram", p.RewardManagerProgram, &ans.RewardManagerProgram},
		{"rewardManagerState", p.RewardManagerState, &ans.RewardManagerState},
	}
	for _, r := range required {
		*r.dst, err = sgo.PublicKeyFromBase58(r.value)
		if err != nil {
			return ans, fmt.Errorf("bad %s: %w", r.name, err)
		}
	}
	if 0 < len(p.PaymentRouterProgram) {
		ans.PaymentRouterProgram, err = sgo.PublicKeyFromBase58(p.PaymentRouterProgram)
		if err != nil {
			return ans, fmt.Errorf("bad paymentRouterProgram: %w", err)
		}
	}
	if 0 < len(p.CollectionAccount) {
		ans.CollectionAccount, err = sgo.PublicKeyFromBase58(p.CollectionAccount)
		if err != nil {
			return ans, fmt.Errorf("bad collectionAccount: %w", err)
		}
	}
	ans.ProtocolWallets, err = keyList(p.ProtocolWallets)
	if err != nil {
		return ans, fmt.Errorf("bad protocolWallets: %w", err)
	}
	ans.PassThrough, err = keyList(p.PassThrough)
	if err != nil {
		return ans, fmt.Errorf("bad passThrough: %w", err)
	}
	return ans, ans.Check()
}

func keyList(list []string) ([]sgo.PublicKey, error) {
	ans := make([]sgo.PublicKey, len(list))
	var err error
	for i, s := range list {
		ans[i], err = sgo.PublicKeyFromBase58(s)
		if err != nil {
			return nil, err
		}
	}
	return ans, nil
}

func (config Configuration) StaticNodes() ([]peer.Node, error) {
	ans := make([]peer.Node, len(config.Peers.Static))
	for i, n := range config.Peers.Static {
		if len(n.Endpoint) == 0 {
			return nil, errors.New("peer without endpoint")
		}
		if !common.IsHexAddress(n.Wallet) {
			return nil, fmt.Errorf("peer %s has a bad wallet", n.Endpoint)
		}
		ans[i] = peer.Node{Endpoint: n.Endpoint, Wallet: common.HexToAddress(n.Wallet)}
	}
	return ans, nil
}

// TrustedProxies accepts CIDRs or single addresses.
func (config Configuration) TrustedProxies() ([]*net.IPNet, error) {
	ans := make([]*net.IPNet, 0, len(config.Server.TrustedProxies))
	for _, s := range config.Server.TrustedProxies {
		if !strings.Contains(s, "/") {
			ip := net.ParseIP(s)
			if ip == nil {
				return nil, fmt.Errorf("bad trusted proxy %s", s)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 8 * net.IPv4len
			}
			ans = append(ans, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("bad trusted proxy %s: %w", s, err)
		}
		ans = append(ans, n)
	}
	return ans, nil
}

func (config Configuration) BroadcastConfiguration() broadcast.Configuration {
	return broadcast.Configuration{
		SendInterval: config.Broadcast.SendInterval,
		PollInterval: config.Broadcast.PollInterval,
	}
}
