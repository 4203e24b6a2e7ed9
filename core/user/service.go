package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
)

const generatedPasswordLen = 12

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrInvalidOTP     = errors.New("invalid or expired code")
	ErrTooManyOTPTry  = errors.New("too many attempts, request a new code")
	ErrNotApplicant   = errors.New("user did not apply as a teacher")
	ErrAccountMissing = errors.New("no account is associated with this email")
	ErrAuthFailed     = errors.New("invalid credentials")
	ErrDeactivated    = errors.New("account deactivated")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs []string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.FullName, User.Email or User.Phone.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SetLastLogin(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo    Repository
		otp     OTPStore
		mailSvc core.EmailService
		tokens  tokenGenerator
		conf    *core.Config
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	otp OTPStore,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		otp:     otp,
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		conf:    conf,
		logger:  logger,
	}
}

// CheckUniqueness reports an email already used by a User other than excludedIDs as a ValidationError.
func (svc *Service) CheckUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedIDs); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) newUser(email, name, phone, pwd string, roles ...string) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Email:     email,
		FullName:  name,
		Phone:     phone,
		IsActive:  true,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return usr, nil
}

// Create creates a User with arbitrary roles (admin user management).
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.CheckUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}
	roles := nu.Roles
	if len(roles) == 0 {
		roles = []string{RoleStudent}
	}
	usr, err := svc.newUser(nu.Email, nu.FullName, nu.Phone, nu.Password, roles...)
	if err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// CreateStudent creates a student account. When ns.Password is empty a password is generated
// and returned so it can be handed over to the student.
func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent, exec ...core.DBExecutor) (User, string, error) {
	if err := svc.repo.CheckEmailUniqueness(ctx, ns.Email, nil, exec...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, "", core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return User{}, "", err
	}

	pwd := ns.Password
	if pwd == "" {
		var err error
		if pwd, err = GeneratePassword(generatedPasswordLen); err != nil {
			return User{}, "", errors.Wrap(err, "generating password")
		}
	}
	usr, err := svc.newUser(ns.Email, ns.FullName, ns.Phone, pwd, RoleStudent)
	if err != nil {
		return User{}, "", err
	}
	usr, err = svc.repo.CreateUser(ctx, usr, exec...)
	if err != nil {
		return User{}, "", errors.Wrap(err, "creating student")
	}
	return usr, pwd, nil
}

// CreateAdmin creates a User holding the admin role.
func (svc *Service) CreateAdmin(ctx context.Context, na NewAdmin) (User, error) {
	if err := svc.CheckUniqueness(ctx, na.Email); err != nil {
		return User{}, err
	}
	usr, err := svc.newUser(na.Email, na.FullName, "", na.Password, RoleAdmin)
	if err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// ApplyAsTeacher registers a teacher applicant. The teacher role is only granted on approval.
func (svc *Service) ApplyAsTeacher(ctx context.Context, nt NewTeacher) (User, error) {
	if err := svc.CheckUniqueness(ctx, nt.Email); err != nil {
		return User{}, err
	}
	usr, err := svc.newUser(nt.Email, nt.FullName, nt.Phone, nt.Password, RoleStudent)
	if err != nil {
		return User{}, err
	}
	usr.Bio = nt.Bio
	usr.TeacherApplicant = true
	return svc.repo.CreateUser(ctx, usr)
}

// SetTeacherApproval approves (grants the teacher role) or revokes a teacher.
func (svc *Service) SetTeacherApproval(ctx context.Context, id string, approved bool) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if approved && !usr.TeacherApplicant && !usr.IsTeacher() {
		return User{}, ErrNotApplicant
	}
	usr.TeacherApproved = approved
	if approved {
		usr.TeacherApplicant = true
		usr.AddRole(RoleTeacher)
	} else {
		usr.RemoveRole(RoleTeacher)
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	if !core.IsUUID(id) {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Update applies a validated UpdateUser to usr.
func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if uu.Email != usr.Email {
		if err := svc.CheckUniqueness(ctx, uu.Email, usr.ID); err != nil {
			return User{}, err
		}
	}
	usr.FullName = uu.FullName
	usr.Email = uu.Email
	usr.Phone = uu.Phone
	usr.Bio = uu.Bio
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
		usr.TeacherApproved = usr.IsTeacher()
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.IsActive = active
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetAvatar(ctx context.Context, id, url string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.AvatarURL = url
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.SetLastLogin(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids)
}

// Authenticate checks the credentials of an active User and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAuthFailed
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthFailed
	}
	if !usr.IsActive {
		return User{}, ErrDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

// LoginWithOTP consumes a one-time code and returns the active User owning email.
func (svc *Service) LoginWithOTP(ctx context.Context, email, code string) (User, error) {
	if err := svc.VerifyOTP(ctx, email, code); err != nil {
		return User{}, err
	}
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAccountMissing
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if !usr.IsActive {
		return User{}, ErrDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

// RequestPasswordReset mails a password reset link to the active User owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *Service) sendPasswordResetMail(usr User) error {
	token := svc.tokens.makeToken(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{Name: usr.FullName, UID: EncodeUID(usr), Token: token},
	})
	return nil
}

// ResetPassword sets a new password after verifying the reset token.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidErr
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidErr
		}
		return err
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if err = validatePasswordPolicy(data.Password, usr.FullName, usr.Email); err != nil {
		return err
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

// SendOTP stores a fresh one-time code for email and mails it. Any previous code is replaced.
func (svc *Service) SendOTP(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	code, err := core.RandomString(svc.conf.OTP.Length, otpAlphabet)
	if err != nil {
		return errors.Wrap(err, "generating code")
	}
	if err = svc.otp.Save(ctx, email, hashOTP(svc.conf.SecretKey, email, code), svc.conf.OTP.TTL); err != nil {
		return errors.Wrap(err, "saving code")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      "Your verification code",
		TemplateName: "otp",
		TemplateData: struct {
			Code    string
			Minutes int
		}{Code: code, Minutes: int(svc.conf.OTP.TTL / time.Minute)},
	})
	return nil
}

// VerifyOTP consumes the code sent to email. A code survives at most OTP.MaxAttempts wrong guesses.
func (svc *Service) VerifyOTP(ctx context.Context, email, code string) error {
	email = core.CleanString(email, true /* lower */)
	entry, err := svc.otp.Get(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrOTPNotFound {
			return ErrInvalidOTP
		}
		return errors.Wrap(err, "getting code")
	}
	if entry.Attempts >= svc.conf.OTP.MaxAttempts {
		_ = svc.otp.Delete(ctx, email)
		return ErrTooManyOTPTry
	}
	if !checkOTP(svc.conf.SecretKey, email, core.CleanString(code), entry.Hash) {
		attempts, err := svc.otp.IncrAttempts(ctx, email)
		if err != nil && errors.Cause(err) != ErrOTPNotFound {
			return errors.Wrap(err, "counting attempt")
		}
		if attempts >= svc.conf.OTP.MaxAttempts {
			_ = svc.otp.Delete(ctx, email)
			return ErrTooManyOTPTry
		}
		return ErrInvalidOTP
	}
	if err = svc.otp.Delete(ctx, email); err != nil {
		return errors.Wrap(err, "deleting code")
	}
	return nil
}

// AdminEmails returns the addresses of active admins, used for notifications.
func (svc *Service) AdminEmails(ctx context.Context) ([]mail.Address, error) {
	active := true
	admins, err := svc.repo.QueryUsers(ctx, &QueryFilter{Roles: []string{RoleAdmin}, IsActive: &active}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying admins")
	}
	addrs := make([]mail.Address, 0, len(admins))
	for _, adm := range admins {
		addrs = append(addrs, mail.Address{Name: adm.FullName, Address: adm.Email})
	}
	return addrs, nil
}
