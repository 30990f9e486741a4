package engine

// Generator is a SoundFont 2 generator number.
type Generator int

const (
	GenStartAddrOfs           Generator = 0
	GenEndAddrOfs             Generator = 1
	GenStartLoopAddrOfs       Generator = 2
	GenEndLoopAddrOfs         Generator = 3
	GenStartAddrCoarseOfs     Generator = 4
	GenModLfoToPitch          Generator = 5
	GenVibLfoToPitch          Generator = 6
	GenModEnvToPitch          Generator = 7
	GenFilterFc               Generator = 8
	GenFilterQ                Generator = 9
	GenModLfoToFilterFc       Generator = 10
	GenModEnvToFilterFc       Generator = 11
	GenEndAddrCoarseOfs       Generator = 12
	GenModLfoToVol            Generator = 13
	GenChorusSend             Generator = 15
	GenReverbSend             Generator = 16
	GenPan                    Generator = 17
	GenModLfoDelay            Generator = 21
	GenModLfoFreq             Generator = 22
	GenVibLfoDelay            Generator = 23
	GenVibLfoFreq             Generator = 24
	GenModEnvDelay            Generator = 25
	GenModEnvAttack           Generator = 26
	GenModEnvHold             Generator = 27
	GenModEnvDecay            Generator = 28
	GenModEnvSustain          Generator = 29
	GenModEnvRelease          Generator = 30
	GenKeyToModEnvHold        Generator = 31
	GenKeyToModEnvDecay       Generator = 32
	GenVolEnvDelay            Generator = 33
	GenVolEnvAttack           Generator = 34
	GenVolEnvHold             Generator = 35
	GenVolEnvDecay            Generator = 36
	GenVolEnvSustain          Generator = 37
	GenVolEnvRelease          Generator = 38
	GenKeyToVolEnvHold        Generator = 39
	GenKeyToVolEnvDecay       Generator = 40
	GenInstrument             Generator = 41
	GenKeyRange               Generator = 43
	GenVelRange               Generator = 44
	GenStartLoopAddrCoarseOfs Generator = 45
	GenKeynum                 Generator = 46
	GenVelocity               Generator = 47
	GenAttenuation            Generator = 48
	GenEndLoopAddrCoarseOfs   Generator = 50
	GenCoarseTune             Generator = 51
	GenFineTune               Generator = 52
	GenSampleID               Generator = 53
	GenSampleMode             Generator = 54
	GenScaleTune              Generator = 56
	GenExclusiveClass         Generator = 57
	GenOverrideRootKey        Generator = 58

	// NumGenerators bounds the generator table of a voice.
	NumGenerators = 60
)

// Loop modes carried by GenSampleMode.
const (
	LoopNone         = 0
	LoopContinuous   = 1
	LoopUntilRelease = 3
)
