package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hospital-app/hospital-client/config"
	"github.com/hospital-app/hospital-client/feed"
	"github.com/hospital-app/hospital-client/gateway"
	"github.com/hospital-app/hospital-client/livechannel"
	"github.com/hospital-app/hospital-client/models"
	"github.com/hospital-app/hospital-client/scheduler"
	"github.com/hospital-app/hospital-client/session"
)

type app struct {
	conf     *config.Config
	sessions *session.Context
	gw       *gateway.Client
	channel  *livechannel.Channel
	appts    *feed.Appointments
	chat     *feed.Conversation
	reminder *scheduler.Scheduler
}

func main() {
	conf := config.New()
	if err := models.SetDisplayLocation(conf.DisplayTimezone); err != nil {
		zap.S().Warnw("falling back to default timezone",
			"error", err,
		)
	}

	a := &app{conf: conf}
	a.sessions = session.New(session.NewStore(conf.CredentialFile))
	a.gw = gateway.New(conf, a.sessions)
	a.channel = livechannel.New(conf)
	a.appts = feed.NewAppointments(a.gw, a.channel)
	a.reminder = scheduler.New(a.gw, func(appt models.Appointment) {
		fmt.Printf("\n[reminder] appointment %s starts at %s\n> ", appt.ID, models.FormatClock(appt.StartTime.Time))
	})

	a.channel.OnStateChange(func(s livechannel.State) {
		switch s {
		case livechannel.StateReconnecting:
			fmt.Println("[channel] connection lost, reconnecting...")
		case livechannel.StateConnected:
			fmt.Println("[channel] connected")
		case livechannel.StateDisconnected:
			fmt.Println("[channel] gave up reconnecting; cached data shown, try 'connect'")
		}
	})

	zap.S().Infow("hospital-client is up and running",
		"api", conf.APIBaseURL,
		"hub", conf.HubURL,
	)

	if s := a.sessions.Restore(); s != nil {
		fmt.Printf("restored session for %s (%s)\n", s.SubjectID, s.Role)
		a.openSession(s)
	} else {
		fmt.Println("not logged in; use: login <email> <password>")
	}

	a.repl()
}

// openSession brings up everything tied to a live session: the push channel,
// the appointment feed and the reminder job
func (a *app) openSession(s *models.Session) {
	if err := a.channel.Connect(s.Credential); err != nil {
		a.notice(err)
	}
	ctx, cancel := a.callCtx()
	defer cancel()
	if err := a.appts.Open(ctx); err != nil {
		a.notice(err)
	}
	a.reminder.Start()
}

// closeSession tears session-scoped state down in reverse order
func (a *app) closeSession() {
	a.reminder.Stop()
	a.closeChat()
	a.appts.Close()
	_ = a.channel.Close()
	if err := a.sessions.Clear(); err != nil {
		zap.S().Warnw("failed to clear credential",
			"error", err,
		)
	}
}

func (a *app) closeChat() {
	if a.chat != nil {
		a.chat.Close()
		a.chat = nil
	}
}

func (a *app) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.conf.HTTPTimeout)
}

func (a *app) repl() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			if fields[0] == "quit" || fields[0] == "exit" {
				break
			}
			a.run(fields[0], fields[1:])
		}
		fmt.Print("> ")
	}
	if a.sessions.Current() != nil {
		a.reminder.Stop()
		a.closeChat()
		a.appts.Close()
		_ = a.channel.Close()
	}
}

func (a *app) run(cmd string, args []string) {
	switch cmd {
	case "login":
		a.cmdLogin(args)
	case "logout":
		a.closeSession()
		fmt.Println("logged out")
	case "register":
		a.cmdRegister(args)
	case "verify":
		a.cmdVerify(args)
	case "forgot":
		a.cmdForgot(args)
	case "reset":
		a.cmdReset(args)
	case "doctors":
		a.cmdDoctors()
	case "patients":
		a.cmdPatients()
	case "appointments":
		a.cmdAppointments()
	case "book":
		a.cmdBook(args)
	case "status":
		a.cmdStatus(args)
	case "chat":
		a.cmdChat(args)
	case "send":
		a.cmdSend(args)
	case "profile":
		a.cmdProfile()
	case "ban":
		a.cmdBan(args)
	case "unban":
		a.cmdUnban(args)
	case "connect":
		if s := a.sessions.Current(); s != nil {
			if err := a.channel.Connect(s.Credential); err != nil {
				a.notice(err)
			}
		}
	case "help":
		fmt.Println("commands: login logout register verify forgot reset doctors patients appointments book status chat send profile ban unban connect quit")
	default:
		fmt.Printf("unknown command %q, try 'help'\n", cmd)
	}
}

func (a *app) cmdLogin(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: login <email> <password>")
		return
	}
	ctx, cancel := a.callCtx()
	defer cancel()
	token, err := a.gw.Login(ctx, gateway.LoginRequest{Email: args[0], Password: args[1]})
	if err != nil {
		a.notice(err)
		return
	}
	s, err := a.sessions.Establish(token)
	if err != nil {
		a.notice(err)
		return
	}
	fmt.Printf("logged in as %s (%s)\n", s.SubjectID, s.Role)
	a.openSession(s)
}

func (a *app) cmdRegister(args []string) {
	if len(args) != 4 {
		fmt.Println("usage: register <name> <surname> <email> <password>")
		return
	}
	ctx, cancel := a.callCtx()
	defer cancel()
	err := a.gw.Register(ctx, gateway.RegisterRequest{
		Name:            args[0],
		Surname:         args[1],
		Email:           args[2],
		Password:        args[3],
		PasswordConfirm: args[3],
	}, nil)
	if err != nil {
		a.notice(err)
		return
	}
	fmt.Println("registered; check your email for the verification link")
}

func (a *app) cmdVerify(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: verify <token>")
		return
	}
	ctx, cancel := a.callCtx()
	defer cancel()
	if err := a.gw.VerifyEmail(ctx, args[0]); err != nil {
		a.notice(err)
		return
	}
	fmt.Println("email verified, you can log in now")
}

func (a *app) cmdForgot(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: forgot <email>")
		return
	}
	ctx, cancel := a.callCtx()
	defer cancel()
	if err := a.gw.ForgotPassword(ctx, args[0]); err != nil {
		a.notice(err)
		return
	}
	fmt.Println("reset link sent, check your email")
}

func (a *app) cmdReset(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: reset <token> <newPassword>")
		return
	}
	ctx, cancel := a.callCtx()
	defer cancel()
	if err := a.gw.ResetPassword(ctx, args[0], args[1], args[1]); err != nil {
		a.notice(err)
		return
	}
	fmt.Println("password reset, you can log in now")
}

func (a *app) cmdDoctors() {
	ctx, cancel := a.callCtx()
	defer cancel()
	doctors, err := a.gw.Doctors(ctx)
	if err != nil {
		a.notice(err)
		return
	}
	for _, d := range doctors {
		fmt.Printf("%s  Dr. %s %s  %s\n", d.ID, d.Name, d.Surname, d.Description)
	}
}

func (a *app) cmdPatients() {
	ctx, cancel := a.callCtx()
	defer cancel()
	patients, err := a.gw.Patients(ctx)
	if err != nil {
		a.notice(err)
		return
	}
	for _, p := range patients {
		banned := ""
		if p.BannedUntil != "" {
			banned = "  banned until " + p.BannedUntil
		}
		fmt.Printf("%s  %s %s  %s%s\n", p.ID, p.Name, p.Surname, p.Email, banned)
	}
}

func (a *app) cmdAppointments() {
	for _, appt := range a.appts.All() {
		fmt.Printf("%s  %s - %s  %s  (Dr. %s %s / %s %s)\n",
			appt.ID,
			models.FormatClock(appt.StartTime.Time),
			models.FormatClock(appt.EndTime.Time),
			appt.Status,
			appt.DoctorName, appt.DoctorSurname,
			appt.PatientName, appt.PatientSurname,
		)
	}
}

func (a *app) cmdBook(args []string) {
	if len(args) != 3 {
		fmt.Println("usage: book <doctorId> <DD-MM-YYYY> <HH:MM>")
		return
	}
	start := args[1] + " " + args[2]
	if _, err := models.ParseClock(start); err != nil {
		fmt.Println("bad start time, expected DD-MM-YYYY HH:MM")
		return
	}
	ctx, cancel := a.callCtx()
	defer cancel()
	err := a.gw.CreateAppointment(ctx, models.NewAppointmentRequest{StartTime: start, DoctorID: args[0]})
	if err != nil {
		a.notice(err)
		return
	}
	fmt.Println("appointment created")
	refreshCtx, refreshCancel := a.callCtx()
	defer refreshCancel()
	if err := a.appts.Refresh(refreshCtx); err != nil {
		a.notice(err)
	}
}

func (a *app) cmdStatus(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: status <appointmentId> <PENDING|ACCEPTED|REJECTED>")
		return
	}
	status := models.AppointmentStatus(strings.ToUpper(args[1]))
	ctx, cancel := a.callCtx()
	defer cancel()
	if err := a.gw.UpdateAppointmentStatus(ctx, args[0], status); err != nil {
		a.notice(err)
		return
	}
	a.appts.ApplyStatus(args[0], status)
	fmt.Println("status updated")
}

func (a *app) cmdChat(args []string) {
	s := a.sessions.Current()
	if s == nil {
		fmt.Println("log in first")
		return
	}
	if len(args) != 1 {
		fmt.Println("usage: chat <counterpartyId>")
		return
	}
	if a.chat == nil {
		a.chat = feed.NewConversation(a.gw, a.channel, s.SubjectID)
		a.chat.OnChange(func(msgs []models.Message) {
			if len(msgs) == 0 {
				return
			}
			last := msgs[len(msgs)-1]
			fmt.Printf("\n[%s] %s: %s\n> ", last.CreatedAt.Format("15:04"), last.SenderID, last.Content)
		})
	}
	ctx, cancel := a.callCtx()
	defer cancel()
	if err := a.chat.Open(ctx, args[0]); err != nil {
		a.notice(err)
		return
	}
	for _, m := range a.chat.Messages() {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), m.SenderID, m.Content)
	}
}

func (a *app) cmdSend(args []string) {
	s := a.sessions.Current()
	if s == nil || a.chat == nil {
		fmt.Println("open a chat first")
		return
	}
	if len(args) == 0 {
		fmt.Println("usage: send <text>")
		return
	}
	receiver := a.chat.Scope()
	if receiver == "" {
		fmt.Println("open a chat first")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.channel.SendMessage(ctx, s.SubjectID, receiver, strings.Join(args, " ")); err != nil {
		a.notice(err)
	}
}

func (a *app) cmdProfile() {
	ctx, cancel := a.callCtx()
	defer cancel()
	p, err := a.gw.Profile(ctx)
	if err != nil {
		a.notice(err)
		return
	}
	fmt.Printf("%s %s <%s> role=%s born=%s\n%s\n", p.Name, p.Surname, p.Email, p.Role, p.BirthDate, p.Description)
}

func (a *app) cmdBan(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: ban <userId> [hours]")
		return
	}
	var until time.Time
	if len(args) == 2 {
		var hours int
		if _, err := fmt.Sscanf(args[1], "%d", &hours); err != nil || hours <= 0 {
			fmt.Println("hours must be a positive number")
			return
		}
		until = time.Now().Add(time.Duration(hours) * time.Hour)
	}
	ctx, cancel := a.callCtx()
	defer cancel()
	if err := a.gw.BanUser(ctx, args[0], until); err != nil {
		a.notice(err)
		return
	}
	fmt.Println("user banned")
}

func (a *app) cmdUnban(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: unban <userId>")
		return
	}
	ctx, cancel := a.callCtx()
	defer cancel()
	if err := a.gw.UnbanUser(ctx, args[0]); err != nil {
		a.notice(err)
		return
	}
	fmt.Println("user unbanned")
}

// notice converts gateway and channel failures into user-visible messages;
// nothing propagates as a crash
func (a *app) notice(err error) {
	switch {
	case gateway.IsKind(err, gateway.Unauthorized):
		fmt.Println("session expired, please log in again")
		a.closeSession()
	case gateway.IsKind(err, gateway.Forbidden):
		fmt.Println("your role is not allowed to do that")
	case gateway.IsKind(err, gateway.NotFound):
		fmt.Println("not found")
	case gateway.IsKind(err, gateway.ValidationFailed):
		if apiErr, ok := err.(*gateway.APIError); ok && len(apiErr.Fields) > 0 {
			for field, msg := range apiErr.Fields {
				fmt.Printf("%s: %s\n", field, msg)
			}
			return
		}
		fmt.Printf("invalid input: %v\n", err)
	case gateway.IsKind(err, gateway.NetworkError):
		fmt.Println("backend unreachable, try again")
	default:
		fmt.Printf("error: %v\n", err)
	}
	zap.S().Debugw("command failed",
		"error", err,
	)
}
