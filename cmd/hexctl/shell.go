package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/labhex/hexprot/pkg/hexprot"
	"github.com/labhex/hexprot/pkg/transport/mqttbridge"
	"github.com/labhex/hexprot/pkg/transport/serial"
)

const shellKey = "$shell"

// noChannel is outside the signed 8-bit Channel range and marks "no
// channel given" for the -c flag's default.
const noChannel = -1000

var (
	portFlag    string
	baudFlag    int
	brokerFlag  string
	channelFlag int
	jsonFlag    bool
	evalOnly    bool
)

func init() {
	flag.StringVar(&portFlag, "port", "", "Serial port to open, e.g. /dev/ttyUSB0.")
	flag.IntVar(&baudFlag, "baud", 9600, "Baud rate for -port.")
	flag.StringVar(&brokerFlag, "broker", "", "MQTT broker URL to tunnel through, e.g. mqtt://host:1883/rig1.")
	flag.IntVar(&channelFlag, "c", noChannel, "Channel to prefix onto channel-qualified commands.")
	flag.BoolVar(&jsonFlag, "json", false, "Print results as JSON.")
	flag.BoolVar(&evalOnly, "e", false, "Evaluate the given args only, no interactive shell.")
}

// Shell wraps an ishell.Shell around one open hexprot Session.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell     *ishell.Shell
	Session   *hexprot.Session
	Initiator *hexprot.Initiator
	closer    func() error
}

// NewShell opens the transport selected by flags and builds the
// shell around it.
func NewShell() (*Shell, error) {
	var (
		t      hexprot.Transport
		closer func() error
	)
	switch {
	case portFlag != "":
		cfg := serial.DefaultConfig(baudFlag)
		s, err := serial.Open(portFlag, cfg)
		if err != nil {
			return nil, err
		}
		t, closer = s, s.Close
	case brokerFlag != "":
		q, err := mqttbridge.NewQueueFromURL(brokerFlag)
		if err != nil {
			return nil, err
		}
		b, err := mqttbridge.New(q, "", 500*time.Millisecond)
		if err != nil {
			return nil, err
		}
		t, closer = b, b.Close
	default:
		return nil, fmt.Errorf("one of -port or -broker is required")
	}

	session := hexprot.NewSession(t, hexprot.RoleInitiator)
	session.Start()

	sh := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  jsonFlag,
		Shell:       ishell.New(),
		Session:     session,
		Initiator:   hexprot.NewInitiator(session),
		closer:      closer,
	}
	sh.Shell.Set(shellKey, sh)
	sh.Shell.SetPrompt("hexctl> ")
	for _, cmd := range commands {
		sh.Shell.AddCmd(cmd)
	}
	return sh, nil
}

// ShellFrom retrieves the Shell from an ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Close ends the session and releases the transport.
func (s *Shell) Close() {
	s.Session.End()
	if s.closer != nil {
		if err := s.closer(); err != nil {
			glog.Warningf("hexctl: close: %v", err)
		}
	}
}

// Run processes args as a single command, or starts the interactive
// loop if none were given.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func channelArg() (hexprot.Channel, bool) {
	if channelFlag < -128 || channelFlag > 127 {
		return 0, false
	}
	return hexprot.Channel(channelFlag), true
}

func parseCommand(arg string) (hexprot.Command, error) {
	v, err := strconv.ParseUint(arg, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("command %q: %w", arg, err)
	}
	return hexprot.Command(v), nil
}

func parseUint32(arg string) (uint32, error) {
	v, err := strconv.ParseUint(arg, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("value %q: %w", arg, err)
	}
	return uint32(v), nil
}

func printResult(c *ishell.Context, label string, v interface{}) {
	s := ShellFrom(c)
	if s.OutputJSON {
		c.Printf("{%q:%q}\n", label, fmt.Sprint(v))
		return
	}
	c.Printf("%s: %v\n", label, v)
}

var commands = []*ishell.Cmd{
	{
		Name: "task",
		Help: "CMD -- run a no-argument command",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: task CMD"))
				return
			}
			cmd, err := parseCommand(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			if ch, ok := channelArg(); ok {
				err = s.Initiator.ChannelTask(cmd, ch)
			} else {
				err = s.Initiator.Task(cmd)
			}
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	},
	{
		Name: "get",
		Help: "CMD -- read one uint32 value",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: get CMD"))
				return
			}
			cmd, err := parseCommand(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			v, err := hexprot.Get1[uint32](ShellFrom(c).Initiator, cmd)
			if err != nil {
				c.Err(err)
				return
			}
			printResult(c, "value", fmt.Sprintf("%x", v))
		},
	},
	{
		Name: "set",
		Help: "CMD VALUE -- write one uint32 value (hex)",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: set CMD VALUE"))
				return
			}
			cmd, err := parseCommand(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			v, err := parseUint32(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			if err := hexprot.Set1(ShellFrom(c).Initiator, cmd, v); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	},
	{
		Name: "getstr",
		Help: "CMD -- read a string value",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: getstr CMD"))
				return
			}
			cmd, err := parseCommand(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			s, err := ShellFrom(c).Initiator.GetString(cmd)
			if err != nil {
				c.Err(err)
				return
			}
			printResult(c, "value", s)
		},
	},
	{
		Name: "setstr",
		Help: "CMD STRING -- write a string value",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("usage: setstr CMD STRING"))
				return
			}
			cmd, err := parseCommand(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if err := ShellFrom(c).Initiator.SetString(cmd, strings.Join(c.Args[1:], " ")); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	},
	{
		Name: "getarr",
		Help: "CMD MAX -- read an array of uint32 values",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: getarr CMD MAX"))
				return
			}
			cmd, err := parseCommand(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			max, err := strconv.ParseUint(c.Args[1], 10, 16)
			if err != nil {
				c.Err(err)
				return
			}
			vals, err := hexprot.GetArray[uint32](ShellFrom(c).Initiator, cmd, hexprot.Size(max))
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(vals)
		},
	},
	{
		Name: "setarr",
		Help: "CMD V1,V2,... -- write an array of uint32 values (hex)",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: setarr CMD V1,V2,..."))
				return
			}
			cmd, err := parseCommand(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			parts := strings.Split(c.Args[1], ",")
			vals := make([]uint32, len(parts))
			for i, p := range parts {
				v, err := parseUint32(p)
				if err != nil {
					c.Err(err)
					return
				}
				vals[i] = v
			}
			if err := hexprot.SetArray(ShellFrom(c).Initiator, cmd, vals); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	},
	{
		Name: "probe",
		Help: "-- run the detection probe",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			status, err := s.Session.TryStream(hexprot.DefaultAnswerTimeout, func(*hexprot.Initiator) error {
				return nil
			})
			if err != nil {
				c.Err(err)
			}
			c.Printf("status: %v\n", status)
		},
	},
}

// Main is a helper to provide a single call from main().
func Main() {
	flag.Parse()
	sh, err := NewShell()
	if err != nil {
		log.Fatalln(err)
	}
	defer sh.Close()
	sh.Run(flag.Args()...)
}
